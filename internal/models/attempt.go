package models

import (
	"time"
)

// Attempt is one student's instance of taking a quiz.
// It is created in progress and becomes completed exactly once, on submission.
type Attempt struct {
	ID          int64      `json:"id"`
	QuizID      int64      `json:"quiz_id"`
	StudentID   int64      `json:"student_id"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	IsCompleted bool       `json:"is_completed"`
	Score       *float64   `json:"score"`
	TotalPoints *float64   `json:"total_points"`
	MaxPoints   *float64   `json:"max_points"`
}

// Answer is the single live answer of an attempt to one question.
// AnswerText is used by short_answer and true_false, OptionID by multiple_choice.
type Answer struct {
	ID           int64     `json:"id"`
	AttemptID    int64     `json:"attempt_id"`
	QuestionID   int64     `json:"question_id"`
	AnswerText   *string   `json:"answer_text"`
	OptionID     *int64    `json:"option_id"`
	IsCorrect    *bool     `json:"is_correct"`
	PointsEarned *float64  `json:"points_earned"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// LatestCompleted returns the most recently submitted completed attempt.
func LatestCompleted(attempts []Attempt) (*Attempt, bool) {
	var latest *Attempt
	for i := range attempts {
		a := &attempts[i]
		if !a.IsCompleted {
			continue
		}
		if latest == nil || submittedOrStarted(a).After(submittedOrStarted(latest)) ||
			(submittedOrStarted(a).Equal(submittedOrStarted(latest)) && a.ID > latest.ID) {
			latest = a
		}
	}
	return latest, latest != nil
}

// CountCompleted returns how many attempts are completed.
func CountCompleted(attempts []Attempt) int {
	n := 0
	for _, a := range attempts {
		if a.IsCompleted {
			n++
		}
	}
	return n
}

func submittedOrStarted(a *Attempt) time.Time {
	if a.SubmittedAt != nil {
		return *a.SubmittedAt
	}
	return a.StartedAt
}
