package models

import (
	"fmt"
	"math"
	"time"
)

// QuestionType is the closed set of supported question kinds.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeTrueFalse      QuestionType = "true_false"
)

// ParseQuestionType returns the question type named by s.
func ParseQuestionType(s string) (QuestionType, error) {
	switch t := QuestionType(s); t {
	case TypeMultipleChoice, TypeShortAnswer, TypeTrueFalse:
		return t, nil
	}
	return "", fmt.Errorf("unknown question type %q", s)
}

// Question is one item of a quiz. Its answer key lives in Body.
type Question struct {
	ID         int64     `json:"id"`
	QuizID     int64     `json:"quiz_id"`
	Text       string    `json:"question_text"`
	Points     float64   `json:"points"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	Body       Body      `json:"-"`
}

// Type returns the question type of the body.
func (q *Question) Type() QuestionType { return q.Body.questionType() }

// Option is a choice of a multiple_choice question.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
	OrderIndex int    `json:"order_index"`
}

// Body is the type-specific part of a question. The set of implementations is closed:
// MultipleChoice, ShortAnswer and TrueFalse.
type Body interface {
	questionType() QuestionType
}

// MultipleChoice keeps its correctness in the options; exactly one is correct.
type MultipleChoice struct {
	Options []Option
}

// ShortAnswer is graded by normalized comparison with Expected.
type ShortAnswer struct {
	Expected string
}

// TrueFalse stores the expected answer as "true" or "false".
type TrueFalse struct {
	Expected string
}

func (MultipleChoice) questionType() QuestionType { return TypeMultipleChoice }
func (ShortAnswer) questionType() QuestionType    { return TypeShortAnswer }
func (TrueFalse) questionType() QuestionType      { return TypeTrueFalse }

// Correct returns the unique correct option.
func (m MultipleChoice) Correct() (Option, bool) {
	for _, o := range m.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return Option{}, false
}

// Option returns the option with the given id.
func (m MultipleChoice) Option(id int64) (Option, bool) {
	for _, o := range m.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// SwitchBody calls the handler matching the concrete body. Adding a variant changes
// this signature, so every caller has to handle it.
func SwitchBody[T any](b Body, mc func(MultipleChoice) T, sa func(ShortAnswer) T, tf func(TrueFalse) T) T {
	switch v := b.(type) {
	case MultipleChoice:
		return mc(v)
	case *MultipleChoice:
		return mc(*v)
	case ShortAnswer:
		return sa(v)
	case *ShortAnswer:
		return sa(*v)
	case TrueFalse:
		return tf(v)
	case *TrueFalse:
		return tf(*v)
	}
	panic(fmt.Sprintf("models: unhandled question body %T", b))
}

// CorrectAnswer is the display form of the answer key.
func (q *Question) CorrectAnswer() string {
	return SwitchBody(q.Body,
		func(m MultipleChoice) string {
			if o, ok := m.Correct(); ok {
				return o.Text
			}
			return ""
		},
		func(s ShortAnswer) string { return s.Expected },
		func(t TrueFalse) string { return t.Expected },
	)
}

// Options returns the options of a multiple_choice question, nil otherwise.
func (q *Question) Options() []Option {
	return SwitchBody(q.Body,
		func(m MultipleChoice) []Option { return m.Options },
		func(ShortAnswer) []Option { return nil },
		func(TrueFalse) []Option { return nil },
	)
}

// StoredAnswer is the value kept in the correct_answer column (empty for multiple_choice).
func (q *Question) StoredAnswer() *string {
	return SwitchBody(q.Body,
		func(MultipleChoice) *string { return nil },
		func(s ShortAnswer) *string { return &s.Expected },
		func(t TrueFalse) *string { return &t.Expected },
	)
}

// NewBody builds a body from its stored columns.
func NewBody(t QuestionType, correctAnswer *string, options []Option) (Body, error) {
	expected := ""
	if correctAnswer != nil {
		expected = *correctAnswer
	}
	switch t {
	case TypeMultipleChoice:
		return MultipleChoice{Options: options}, nil
	case TypeShortAnswer:
		return ShortAnswer{Expected: expected}, nil
	case TypeTrueFalse:
		return TrueFalse{Expected: expected}, nil
	}
	return nil, fmt.Errorf("unknown question type %q", t)
}

// QuizTotals sums points over a quiz's questions, rounded to two places.
func QuizTotals(questions []Question) (count int, points float64) {
	for _, q := range questions {
		points += q.Points
	}
	return len(questions), math.Round(points*100) / 100
}
