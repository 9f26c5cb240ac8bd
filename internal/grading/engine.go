// Package grading decides answer correctness and aggregates attempt scores.
// Everything here is pure: no storage, no clock.
package grading

import (
	"math"
	"strings"

	"github.com/aura-learn/quiz-backend/internal/models"
)

// Response is the value a student submitted for one question.
type Response struct {
	OptionID *int64
	Text     string
}

// ResponseOf extracts the submitted value stored on an answer.
func ResponseOf(a models.Answer) Response {
	r := Response{OptionID: a.OptionID}
	if a.AnswerText != nil {
		r.Text = *a.AnswerText
	}
	return r
}

// Check reports whether r answers q correctly.
// Multiple choice compares option identity, falling back to the option text when no id was sent.
// Text questions compare trimmed, lower-cased strings exactly.
func Check(q models.Question, r Response) bool {
	return models.SwitchBody(q.Body,
		func(m models.MultipleChoice) bool {
			correct, ok := m.Correct()
			if !ok {
				return false
			}
			if r.OptionID != nil {
				return *r.OptionID == correct.ID
			}
			if strings.TrimSpace(r.Text) == "" {
				return false
			}
			return normalize(r.Text) == normalize(correct.Text)
		},
		func(s models.ShortAnswer) bool { return normalize(s.Expected) == normalize(r.Text) },
		func(t models.TrueFalse) bool { return normalize(t.Expected) == normalize(r.Text) },
	)
}

// Result is the outcome of grading a whole attempt.
type Result struct {
	Answers     []models.Answer
	TotalPoints float64
	MaxPoints   float64
	Score       float64
}

// Grade marks every answer and totals the attempt. MaxPoints sums all questions of the quiz,
// answered or not. Answers to questions that are no longer part of the quiz earn nothing.
func Grade(questions []models.Question, answers []models.Answer) Result {
	byID := make(map[int64]models.Question, len(questions))
	res := Result{Answers: make([]models.Answer, 0, len(answers))}
	for _, q := range questions {
		byID[q.ID] = q
		res.MaxPoints += q.Points
	}
	for _, a := range answers {
		earned := 0.0
		correct := false
		if q, ok := byID[a.QuestionID]; ok {
			correct = Check(q, ResponseOf(a))
			if correct {
				earned = q.Points
			}
		}
		a.IsCorrect = &correct
		a.PointsEarned = &earned
		res.TotalPoints += earned
		res.Answers = append(res.Answers, a)
	}
	res.TotalPoints = Round2(res.TotalPoints)
	res.MaxPoints = Round2(res.MaxPoints)
	res.Score = Percentage(res.TotalPoints, res.MaxPoints)
	return res
}

// Percentage returns 100*earned/max rounded to two places, 0 when max is 0.
func Percentage(earned, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return Round2(earned / max * 100)
}

// IsPassing compares a score against the quiz's current passing score.
func IsPassing(score, passingScore float64) bool {
	return score >= passingScore
}

// Round2 rounds to the two decimal places kept by storage.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
