// Package events publishes attempt lifecycle notifications for dashboards.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	AttemptStarted   = "attempt_started"
	AttemptSubmitted = "attempt_submitted"
)

// Event is one lifecycle notification. ID is assigned on publish when empty.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"event"`
	QuizID    int64     `json:"quiz_id"`
	AttemptID int64     `json:"attempt_id"`
	StudentID int64     `json:"student_id"`
	Score     *float64  `json:"score,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
