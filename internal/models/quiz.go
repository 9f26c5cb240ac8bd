package models

import (
	"time"
)

// DefaultPassingScore is the passing percentage applied when a quiz is created without one.
const DefaultPassingScore = 60.0

// Quiz is an authored quiz attached to a course and optionally to one of its modules.
type Quiz struct {
	ID               int64     `json:"id"`
	CourseID         int64     `json:"course_id"`
	ModuleID         *int64    `json:"module_id"`
	Title            string    `json:"title"`
	Description      *string   `json:"description"`
	Instructions     *string   `json:"instructions"`
	TimeLimitMinutes *int      `json:"time_limit_minutes"`
	PassingScore     float64   `json:"passing_score"`
	MaxAttempts      *int      `json:"max_attempts"` // nil = unlimited
	IsActive         bool      `json:"is_active"`
	OrderIndex       int       `json:"order_index"`
	CreatedBy        *int64    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AttemptsExhausted reports whether completed attempts have used up the quiz's current limit.
func (q *Quiz) AttemptsExhausted(completed int) bool {
	return q.MaxAttempts != nil && completed >= *q.MaxAttempts
}

// Deadline returns when an attempt started at startedAt runs out of time, if the quiz has a limit.
func (q *Quiz) Deadline(startedAt time.Time) (time.Time, bool) {
	if q.TimeLimitMinutes == nil || *q.TimeLimitMinutes <= 0 {
		return time.Time{}, false
	}
	return startedAt.Add(time.Duration(*q.TimeLimitMinutes) * time.Minute), true
}
