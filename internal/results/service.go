// Package results serves the read side of attempts: the learner's own history,
// the author's full audit trail and the per-course quiz overview.
package results

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aura-learn/quiz-backend/internal/apperr"
	"github.com/aura-learn/quiz-backend/internal/grading"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
	"github.com/aura-learn/quiz-backend/internal/roster"
)

// Store is the read-only persistence used by the views.
type Store interface {
	GetQuiz(ctx context.Context, id int64) (*models.Quiz, error)
	ListQuizzes(ctx context.Context, courseID int64, activeOnly bool) ([]models.Quiz, error)
	ListQuestions(ctx context.Context, quizID int64) ([]models.Question, error)
	// ListAttempts returns the attempts of a quiz; studentID 0 means every student.
	ListAttempts(ctx context.Context, quizID, studentID int64) ([]models.Attempt, error)
	ListQuizAnswers(ctx context.Context, quizID int64) ([]models.Answer, error)
}

// LearnerAttempt is one of the caller's own attempts.
type LearnerAttempt struct {
	ID          int64      `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	IsCompleted bool       `json:"is_completed"`
	Score       *float64   `json:"score"`
	TotalPoints *float64   `json:"total_points"`
	MaxPoints   *float64   `json:"max_points"`
	IsPassing   *bool      `json:"is_passing"`
	IsLatest    bool       `json:"is_latest"`
}

// LearnerSummary is what a student sees for one quiz. Every decision field comes from
// the latest completed attempt and the quiz as it is now.
type LearnerSummary struct {
	QuizID            int64            `json:"quiz_id"`
	QuizTitle         string           `json:"quiz_title"`
	MaxAttempts       *int             `json:"max_attempts"`
	PassingScore      float64          `json:"passing_score"`
	CompletedAttempts int              `json:"completed_attempts"`
	CanTake           bool             `json:"can_take"`
	LatestAttemptID   *int64           `json:"latest_attempt_id"`
	LatestScore       *float64         `json:"latest_score"`
	IsPassing         *bool            `json:"is_passing"`
	Attempts          []LearnerAttempt `json:"attempts"`
}

// AnswerDetail is one answer in the author's audit trail.
type AnswerDetail struct {
	QuestionID    int64               `json:"question_id"`
	QuestionText  string              `json:"question_text"`
	QuestionType  models.QuestionType `json:"question_type"`
	AnswerText    *string             `json:"answer_text"`
	OptionID      *int64              `json:"option_id"`
	OptionText    *string             `json:"option_text"`
	IsCorrect     *bool               `json:"is_correct"`
	PointsEarned  *float64            `json:"points_earned"`
	CorrectAnswer string              `json:"correct_answer"`
	AnsweredAt    time.Time           `json:"answered_at"`
}

// AuthorAttempt is one student's attempt with every answer.
type AuthorAttempt struct {
	ID          int64          `json:"id"`
	StudentID   int64          `json:"student_id"`
	StartedAt   time.Time      `json:"started_at"`
	SubmittedAt *time.Time     `json:"submitted_at"`
	IsCompleted bool           `json:"is_completed"`
	Score       *float64       `json:"score"`
	TotalPoints *float64       `json:"total_points"`
	MaxPoints   *float64       `json:"max_points"`
	IsPassing   *bool          `json:"is_passing"`
	Answers     []AnswerDetail `json:"answers"`
}

// AuthorReport lists every attempt of a quiz.
type AuthorReport struct {
	QuizID    int64           `json:"quiz_id"`
	QuizTitle string          `json:"quiz_title"`
	Attempts  []AuthorAttempt `json:"attempts"`
}

// QuizOverview is an active quiz of a course with the caller's progress on it.
type QuizOverview struct {
	quizzes.QuizSummary
	CanTake           bool     `json:"can_take"`
	AttemptsCount     int      `json:"attempts_count"`
	CompletedAttempts int      `json:"completed_attempts"`
	LatestScore       *float64 `json:"latest_score"`
}

// Service builds the attempt views.
type Service struct {
	store  Store
	roster roster.Provider
	logger *zap.Logger
}

// NewService creates a results service.
func NewService(store Store, rp roster.Provider, logger *zap.Logger) *Service {
	return &Service{store: store, roster: rp, logger: logger}
}

// LearnerView returns the caller's attempts at a quiz, newest first.
func (s *Service) LearnerView(ctx context.Context, student models.Caller, quizID int64) (*LearnerSummary, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnrolled(ctx, student, quiz.CourseID, "quiz not found or not enrolled in course"); err != nil {
		return nil, err
	}
	attempts, err := s.store.ListAttempts(ctx, quizID, student.UserID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	sortNewestFirst(attempts)

	completed := models.CountCompleted(attempts)
	sum := &LearnerSummary{
		QuizID:            quiz.ID,
		QuizTitle:         quiz.Title,
		MaxAttempts:       quiz.MaxAttempts,
		PassingScore:      quiz.PassingScore,
		CompletedAttempts: completed,
		CanTake:           quiz.IsActive && !quiz.AttemptsExhausted(completed),
		Attempts:          make([]LearnerAttempt, 0, len(attempts)),
	}
	latest, hasLatest := models.LatestCompleted(attempts)
	if hasLatest {
		id := latest.ID
		sum.LatestAttemptID = &id
		sum.LatestScore = latest.Score
		sum.IsPassing = passing(latest, quiz)
	}
	for _, a := range attempts {
		sum.Attempts = append(sum.Attempts, LearnerAttempt{
			ID:          a.ID,
			StartedAt:   a.StartedAt,
			SubmittedAt: a.SubmittedAt,
			IsCompleted: a.IsCompleted,
			Score:       a.Score,
			TotalPoints: a.TotalPoints,
			MaxPoints:   a.MaxPoints,
			IsPassing:   passing(&a, quiz),
			IsLatest:    hasLatest && a.ID == latest.ID,
		})
	}
	return sum, nil
}

// AuthorView returns every attempt of every student with per-answer detail.
func (s *Service) AuthorView(ctx context.Context, author models.Caller, quizID int64) (*AuthorReport, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	ok, err := s.roster.IsCourseAuthor(ctx, author.UserID, quiz.CourseID)
	if err != nil {
		return nil, fmt.Errorf("check course author: %w", err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotAssigned, "quiz not found or not authorized")
	}

	attempts, err := s.store.ListAttempts(ctx, quizID, 0)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	sortNewestFirst(attempts)
	questions, err := s.store.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.store.ListQuizAnswers(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	byQuestion := make(map[int64]models.Question, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = q
	}
	byAttempt := make(map[int64][]AnswerDetail)
	for _, a := range answers {
		byAttempt[a.AttemptID] = append(byAttempt[a.AttemptID], detail(a, byQuestion))
	}

	report := &AuthorReport{QuizID: quiz.ID, QuizTitle: quiz.Title, Attempts: make([]AuthorAttempt, 0, len(attempts))}
	for _, a := range attempts {
		details := byAttempt[a.ID]
		if details == nil {
			details = []AnswerDetail{}
		}
		report.Attempts = append(report.Attempts, AuthorAttempt{
			ID:          a.ID,
			StudentID:   a.StudentID,
			StartedAt:   a.StartedAt,
			SubmittedAt: a.SubmittedAt,
			IsCompleted: a.IsCompleted,
			Score:       a.Score,
			TotalPoints: a.TotalPoints,
			MaxPoints:   a.MaxPoints,
			IsPassing:   passing(&a, quiz),
			Answers:     details,
		})
	}
	return report, nil
}

// CourseOverview lists the active quizzes of a course with the caller's progress.
func (s *Service) CourseOverview(ctx context.Context, student models.Caller, courseID int64) ([]QuizOverview, error) {
	if err := s.requireEnrolled(ctx, student, courseID, "course not found or not enrolled"); err != nil {
		return nil, err
	}
	list, err := s.store.ListQuizzes(ctx, courseID, true)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]QuizOverview, 0, len(list))
	for _, q := range list {
		questions, err := s.store.ListQuestions(ctx, q.ID)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		attempts, err := s.store.ListAttempts(ctx, q.ID, student.UserID)
		if err != nil {
			return nil, fmt.Errorf("list attempts: %w", err)
		}
		count, points := models.QuizTotals(questions)
		completed := models.CountCompleted(attempts)
		ov := QuizOverview{
			QuizSummary:       quizzes.QuizSummary{Quiz: q, QuestionCount: count, TotalPoints: points},
			CanTake:           !q.AttemptsExhausted(completed),
			AttemptsCount:     len(attempts),
			CompletedAttempts: completed,
		}
		if latest, ok := models.LatestCompleted(attempts); ok {
			ov.LatestScore = latest.Score
		}
		out = append(out, ov)
	}
	return out, nil
}

func (s *Service) requireEnrolled(ctx context.Context, student models.Caller, courseID int64, msg string) error {
	ok, err := s.roster.IsEnrolled(ctx, student.UserID, courseID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !ok {
		return apperr.New(apperr.KindNotEnrolled, msg)
	}
	return nil
}

func detail(a models.Answer, questions map[int64]models.Question) AnswerDetail {
	d := AnswerDetail{
		QuestionID:   a.QuestionID,
		AnswerText:   a.AnswerText,
		OptionID:     a.OptionID,
		IsCorrect:    a.IsCorrect,
		PointsEarned: a.PointsEarned,
		AnsweredAt:   a.AnsweredAt,
	}
	q, ok := questions[a.QuestionID]
	if !ok {
		return d
	}
	d.QuestionText = q.Text
	d.QuestionType = q.Type()
	d.CorrectAnswer = q.CorrectAnswer()
	if a.OptionID != nil {
		if mc, ok := q.Body.(models.MultipleChoice); ok {
			if o, ok := mc.Option(*a.OptionID); ok {
				text := o.Text
				d.OptionText = &text
			}
		}
	}
	return d
}

// passing is nil for attempts that are not completed.
func passing(a *models.Attempt, quiz *models.Quiz) *bool {
	if !a.IsCompleted || a.Score == nil {
		return nil
	}
	ok := grading.IsPassing(*a.Score, quiz.PassingScore)
	return &ok
}

// sortNewestFirst puts in-progress attempts first, then completed ones by submission time descending.
func sortNewestFirst(list []models.Attempt) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.IsCompleted != b.IsCompleted {
			return !a.IsCompleted
		}
		ta, tb := a.StartedAt, b.StartedAt
		if a.SubmittedAt != nil && b.SubmittedAt != nil {
			ta, tb = *a.SubmittedAt, *b.SubmittedAt
		}
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.ID > b.ID
	})
}
