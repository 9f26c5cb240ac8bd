package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aura-learn/quiz-backend/internal/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    apperr.Kind `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Code: apperr.KindValidation})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err, Code: apperr.KindForbidden})
}

// Error maps err to its status and writes the kind and message.
// Errors without a kind are reported as 500 with a generic message and recorded on the context
// for the request logger.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		_ = c.Error(err)
	}
	c.JSON(Status(kind), Body{Success: false, Error: apperr.Message(err), Code: kind})
}

// Status returns the HTTP status for an error kind.
func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation,
		apperr.KindQuizInactive,
		apperr.KindAttemptLimitExceeded,
		apperr.KindAttemptCompleted,
		apperr.KindInvalidQuestion,
		apperr.KindTimeLimitExceeded:
		return http.StatusBadRequest
	case apperr.KindNotAssigned,
		apperr.KindNotEnrolled,
		apperr.KindNotFound,
		apperr.KindInvalidReference:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
