// Package apperr holds the error kinds the quiz core reports to callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable category of a failure.
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindInvalidReference     Kind = "invalid_reference"
	KindNotAssigned          Kind = "not_assigned"
	KindNotEnrolled          Kind = "not_enrolled"
	KindNotFound             Kind = "not_found"
	KindForbidden            Kind = "forbidden"
	KindQuizInactive         Kind = "quiz_inactive"
	KindAttemptLimitExceeded Kind = "attempt_limit_exceeded"
	KindAttemptCompleted     Kind = "attempt_completed"
	KindInvalidQuestion      Kind = "invalid_question"
	KindTimeLimitExceeded    Kind = "time_limit_exceeded"
	KindInternal             Kind = "internal"
)

// Error is a business-rule or input failure with a human message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.New(KindX, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation is shorthand for a validation_error.
func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

// NotFound is shorthand for a not_found error.
func NotFound(what string) *Error {
	return Newf(KindNotFound, "%s not found", what)
}

// KindOf returns the kind of err, or KindInternal if it carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-facing message of err. Errors without a kind get a generic text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
