// Package quizzes owns quiz, question and option definitions and their authoring rules.
package quizzes

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/aura-learn/quiz-backend/internal/apperr"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/internal/roster"
)

const (
	maxTitleLen = 255
	maxPoints   = 99999.99
)

// Store persists the authoring aggregate. Lookups of missing rows return an apperr not_found error.
type Store interface {
	CreateQuiz(ctx context.Context, q *models.Quiz) error
	GetQuiz(ctx context.Context, id int64) (*models.Quiz, error)
	UpdateQuiz(ctx context.Context, q *models.Quiz) error
	DeleteQuiz(ctx context.Context, id int64) error
	ListQuizzes(ctx context.Context, courseID int64, activeOnly bool) ([]models.Quiz, error)

	// CreateQuestion inserts the question and its options as one unit and assigns their ids.
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	// UpdateQuestion writes the question columns; with replaceOptions the option set is
	// deleted and re-inserted in the same transaction.
	UpdateQuestion(ctx context.Context, q *models.Question, replaceOptions bool) error
	DeleteQuestion(ctx context.Context, id int64) error
	ListQuestions(ctx context.Context, quizID int64) ([]models.Question, error)
}

// CreateQuizInput is the body of a new quiz.
type CreateQuizInput struct {
	CourseID         int64      `json:"course_id" binding:"required"`
	ModuleID         *int64     `json:"module_id"`
	Title            string     `json:"title"`
	Description      *string    `json:"description"`
	Instructions     *string    `json:"instructions"`
	TimeLimitMinutes *int       `json:"time_limit_minutes"`
	PassingScore     *float64   `json:"passing_score"`
	MaxAttempts      Field[int] `json:"max_attempts"` // absent = 1, null = unlimited
	IsActive         *bool      `json:"is_active"`
	OrderIndex       int        `json:"order_index"`
}

// UpdateQuizInput changes only the keys that are present.
type UpdateQuizInput struct {
	Title            Field[string]  `json:"title"`
	Description      Field[string]  `json:"description"`
	Instructions     Field[string]  `json:"instructions"`
	ModuleID         Field[int64]   `json:"module_id"`
	TimeLimitMinutes Field[int]     `json:"time_limit_minutes"`
	PassingScore     Field[float64] `json:"passing_score"`
	MaxAttempts      Field[int]     `json:"max_attempts"`
	IsActive         Field[bool]    `json:"is_active"`
	OrderIndex       Field[int]     `json:"order_index"`
}

// OptionInput is one multiple_choice option.
type OptionInput struct {
	Text       string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
	OrderIndex *int   `json:"order_index"`
}

// QuestionInput is the body of a new question. Options are required for multiple_choice,
// CorrectAnswer for short_answer and true_false.
type QuestionInput struct {
	Type          string        `json:"question_type"`
	Text          string        `json:"question_text"`
	Points        *float64      `json:"points"`
	OrderIndex    int           `json:"order_index"`
	CorrectAnswer *string       `json:"correct_answer"`
	Options       []OptionInput `json:"options"`
}

// UpdateQuestionInput changes only the keys that are present. Options replace the whole set.
type UpdateQuestionInput struct {
	Type          *string        `json:"question_type"`
	Text          *string        `json:"question_text"`
	Points        *float64       `json:"points"`
	OrderIndex    *int           `json:"order_index"`
	CorrectAnswer *string        `json:"correct_answer"`
	Options       *[]OptionInput `json:"options"`
}

// Service implements quiz authoring for course tutors.
type Service struct {
	store  Store
	roster roster.Provider
	logger *zap.Logger
}

// NewService creates a quiz authoring service.
func NewService(store Store, rp roster.Provider, logger *zap.Logger) *Service {
	return &Service{store: store, roster: rp, logger: logger}
}

// CreateQuiz validates and stores a new quiz in course in.CourseID.
func (s *Service) CreateQuiz(ctx context.Context, author models.Caller, in CreateQuizInput) (*models.Quiz, error) {
	if in.CourseID <= 0 {
		return nil, apperr.Validation("course_id is required")
	}
	if err := s.requireCourseAuthor(ctx, author, in.CourseID, "course not found or not assigned"); err != nil {
		return nil, err
	}

	q := &models.Quiz{
		CourseID:         in.CourseID,
		ModuleID:         in.ModuleID,
		Title:            strings.TrimSpace(in.Title),
		Description:      trimmedOrNil(in.Description),
		Instructions:     trimmedOrNil(in.Instructions),
		TimeLimitMinutes: in.TimeLimitMinutes,
		PassingScore:     models.DefaultPassingScore,
		IsActive:         true,
		OrderIndex:       in.OrderIndex,
		CreatedBy:        &author.UserID,
	}
	if in.PassingScore != nil {
		q.PassingScore = *in.PassingScore
	}
	switch {
	case !in.MaxAttempts.Set:
		one := 1
		q.MaxAttempts = &one
	case !in.MaxAttempts.Null:
		q.MaxAttempts = in.MaxAttempts.Ptr()
	}
	if in.IsActive != nil {
		q.IsActive = *in.IsActive
	}
	if err := validateQuiz(q); err != nil {
		return nil, err
	}
	if err := s.checkModule(ctx, q); err != nil {
		return nil, err
	}

	if err := s.store.CreateQuiz(ctx, q); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	s.logger.Info("quiz created", zap.Int64("quiz_id", q.ID), zap.Int64("course_id", q.CourseID), zap.Int64("author_id", author.UserID))
	return q, nil
}

// GetQuiz returns the full definition of a quiz including answer keys.
func (s *Service) GetQuiz(ctx context.Context, author models.Caller, quizID int64) (*QuizDetail, error) {
	q, err := s.ownedQuiz(ctx, author, quizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	d := &QuizDetail{QuizSummary: summarize(*q, questions), Questions: make([]QuestionView, 0, len(questions))}
	for _, qu := range questions {
		d.Questions = append(d.Questions, AuthorQuestion(qu))
	}
	return d, nil
}

// ListCourseQuizzes returns every quiz of a course, active or not, ordered for display.
func (s *Service) ListCourseQuizzes(ctx context.Context, author models.Caller, courseID int64) ([]QuizSummary, error) {
	if err := s.requireCourseAuthor(ctx, author, courseID, "course not found or not assigned"); err != nil {
		return nil, err
	}
	list, err := s.store.ListQuizzes(ctx, courseID, false)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]QuizSummary, 0, len(list))
	for _, q := range list {
		questions, err := s.store.ListQuestions(ctx, q.ID)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		out = append(out, summarize(q, questions))
	}
	return out, nil
}

// UpdateQuiz applies a partial update and re-validates the result.
func (s *Service) UpdateQuiz(ctx context.Context, author models.Caller, quizID int64, in UpdateQuizInput) (*models.Quiz, error) {
	q, err := s.ownedQuiz(ctx, author, quizID)
	if err != nil {
		return nil, err
	}
	moduleChanged := false

	if in.Title.Set {
		if in.Title.Null {
			return nil, apperr.Validation("title cannot be null")
		}
		q.Title = strings.TrimSpace(in.Title.Value)
	}
	if in.Description.Set {
		q.Description = trimmedOrNil(in.Description.Ptr())
	}
	if in.Instructions.Set {
		q.Instructions = trimmedOrNil(in.Instructions.Ptr())
	}
	if in.ModuleID.Set {
		q.ModuleID = in.ModuleID.Ptr()
		moduleChanged = true
	}
	if in.TimeLimitMinutes.Set {
		q.TimeLimitMinutes = in.TimeLimitMinutes.Ptr()
	}
	if in.PassingScore.Set {
		if in.PassingScore.Null {
			return nil, apperr.Validation("passing_score cannot be null")
		}
		q.PassingScore = in.PassingScore.Value
	}
	if in.MaxAttempts.Set {
		q.MaxAttempts = in.MaxAttempts.Ptr()
	}
	if in.IsActive.Set {
		if in.IsActive.Null {
			return nil, apperr.Validation("is_active cannot be null")
		}
		q.IsActive = in.IsActive.Value
	}
	if in.OrderIndex.Set {
		if in.OrderIndex.Null {
			return nil, apperr.Validation("order_index cannot be null")
		}
		q.OrderIndex = in.OrderIndex.Value
	}

	if err := validateQuiz(q); err != nil {
		return nil, err
	}
	if moduleChanged {
		if err := s.checkModule(ctx, q); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateQuiz(ctx, q); err != nil {
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	s.logger.Info("quiz updated", zap.Int64("quiz_id", q.ID), zap.Int64("author_id", author.UserID))
	return q, nil
}

// DeleteQuiz removes a quiz with its questions, options, attempts and answers.
func (s *Service) DeleteQuiz(ctx context.Context, author models.Caller, quizID int64) error {
	if _, err := s.ownedQuiz(ctx, author, quizID); err != nil {
		return err
	}
	if err := s.store.DeleteQuiz(ctx, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	s.logger.Info("quiz deleted", zap.Int64("quiz_id", quizID), zap.Int64("author_id", author.UserID))
	return nil
}

// AddQuestion validates a question and stores it together with its options.
func (s *Service) AddQuestion(ctx context.Context, author models.Caller, quizID int64, in QuestionInput) (*QuestionView, error) {
	if _, err := s.ownedQuiz(ctx, author, quizID); err != nil {
		return nil, err
	}
	t, err := models.ParseQuestionType(strings.TrimSpace(in.Type))
	if err != nil {
		return nil, apperr.Validation("invalid question_type, must be one of: multiple_choice, short_answer, true_false")
	}
	points := 1.0
	if in.Points != nil {
		points = *in.Points
	}
	q := &models.Question{
		QuizID:     quizID,
		Text:       strings.TrimSpace(in.Text),
		Points:     points,
		OrderIndex: in.OrderIndex,
	}
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	if q.Body, err = buildBody(t, in.CorrectAnswer, in.Options); err != nil {
		return nil, err
	}

	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	s.logger.Info("question added", zap.Int64("quiz_id", quizID), zap.Int64("question_id", q.ID), zap.String("type", string(t)))
	v := AuthorQuestion(*q)
	return &v, nil
}

// GetQuestion returns one question with its answer key.
func (s *Service) GetQuestion(ctx context.Context, author models.Caller, questionID int64) (*QuestionView, error) {
	q, err := s.ownedQuestion(ctx, author, questionID)
	if err != nil {
		return nil, err
	}
	v := AuthorQuestion(*q)
	return &v, nil
}

// UpdateQuestion merges the present fields into the question and re-checks its invariants.
// The question type cannot change.
func (s *Service) UpdateQuestion(ctx context.Context, author models.Caller, questionID int64, in UpdateQuestionInput) (*QuestionView, error) {
	q, err := s.ownedQuestion(ctx, author, questionID)
	if err != nil {
		return nil, err
	}
	t := q.Type()
	if in.Type != nil && strings.TrimSpace(*in.Type) != string(t) {
		return nil, apperr.Validation("question_type cannot be changed")
	}
	if in.Text != nil {
		q.Text = strings.TrimSpace(*in.Text)
	}
	if in.Points != nil {
		q.Points = *in.Points
	}
	if in.OrderIndex != nil {
		q.OrderIndex = *in.OrderIndex
	}
	if err := validateQuestion(q); err != nil {
		return nil, err
	}

	replace := false
	switch t {
	case models.TypeMultipleChoice:
		if in.Options != nil {
			if q.Body, err = buildBody(t, nil, *in.Options); err != nil {
				return nil, err
			}
			replace = true
		}
	default:
		if in.Options != nil {
			return nil, apperr.Validation("options apply to multiple_choice questions only")
		}
		if in.CorrectAnswer != nil {
			if q.Body, err = buildBody(t, in.CorrectAnswer, nil); err != nil {
				return nil, err
			}
		}
	}

	if err := s.store.UpdateQuestion(ctx, q, replace); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	s.logger.Info("question updated", zap.Int64("question_id", q.ID), zap.Bool("options_replaced", replace))
	v := AuthorQuestion(*q)
	return &v, nil
}

// DeleteQuestion removes a question with its options and answers.
func (s *Service) DeleteQuestion(ctx context.Context, author models.Caller, questionID int64) error {
	if _, err := s.ownedQuestion(ctx, author, questionID); err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, questionID); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	s.logger.Info("question deleted", zap.Int64("question_id", questionID))
	return nil
}

// OwnedQuiz loads a quiz the author is assigned to.
func (s *Service) OwnedQuiz(ctx context.Context, author models.Caller, quizID int64) (*models.Quiz, error) {
	return s.ownedQuiz(ctx, author, quizID)
}

func (s *Service) ownedQuiz(ctx context.Context, author models.Caller, quizID int64) (*models.Quiz, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCourseAuthor(ctx, author, q.CourseID, "quiz not found or not authorized"); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) ownedQuestion(ctx context.Context, author models.Caller, questionID int64) (*models.Question, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.store.GetQuiz(ctx, q.QuizID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCourseAuthor(ctx, author, quiz.CourseID, "question not found or not authorized"); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) requireCourseAuthor(ctx context.Context, author models.Caller, courseID int64, msg string) error {
	if !author.IsTutor() {
		return apperr.New(apperr.KindForbidden, "only tutors can manage quizzes")
	}
	ok, err := s.roster.IsCourseAuthor(ctx, author.UserID, courseID)
	if err != nil {
		return fmt.Errorf("check course author: %w", err)
	}
	if !ok {
		return apperr.New(apperr.KindNotAssigned, msg)
	}
	return nil
}

func (s *Service) checkModule(ctx context.Context, q *models.Quiz) error {
	if q.ModuleID == nil {
		return nil
	}
	ok, err := s.roster.ModuleInCourse(ctx, *q.ModuleID, q.CourseID)
	if err != nil {
		return fmt.Errorf("check module: %w", err)
	}
	if !ok {
		return apperr.New(apperr.KindInvalidReference, "module not found or not in this course")
	}
	return nil
}

func validateQuiz(q *models.Quiz) error {
	switch {
	case q.Title == "":
		return apperr.Validation("quiz title is required")
	case len(q.Title) > maxTitleLen:
		return apperr.Validation("quiz title must be at most %d characters", maxTitleLen)
	case math.IsNaN(q.PassingScore) || q.PassingScore < 0 || q.PassingScore > 100:
		return apperr.Validation("passing_score must be between 0 and 100")
	case q.MaxAttempts != nil && *q.MaxAttempts < 1:
		return apperr.Validation("max_attempts must be at least 1")
	case q.TimeLimitMinutes != nil && *q.TimeLimitMinutes <= 0:
		return apperr.Validation("time_limit_minutes must be greater than 0")
	}
	q.PassingScore = round2(q.PassingScore)
	return nil
}

func validateQuestion(q *models.Question) error {
	switch {
	case q.Text == "":
		return apperr.Validation("question_text is required")
	case math.IsNaN(q.Points) || q.Points <= 0:
		return apperr.Validation("points must be greater than 0")
	case q.Points > maxPoints:
		return apperr.Validation("points must be at most %.2f", maxPoints)
	}
	q.Points = round2(q.Points)
	if q.Points <= 0 {
		return apperr.Validation("points must be greater than 0")
	}
	return nil
}

// buildBody checks the type-specific invariants and returns the question body.
func buildBody(t models.QuestionType, correctAnswer *string, options []OptionInput) (models.Body, error) {
	switch t {
	case models.TypeMultipleChoice:
		if len(options) < 2 {
			return nil, apperr.Validation("multiple_choice questions require at least 2 options")
		}
		correct := 0
		opts := make([]models.Option, 0, len(options))
		for i, o := range options {
			text := strings.TrimSpace(o.Text)
			if text == "" {
				return nil, apperr.Validation("option %d: option_text is required", i+1)
			}
			if o.IsCorrect {
				correct++
			}
			order := i
			if o.OrderIndex != nil {
				order = *o.OrderIndex
			}
			opts = append(opts, models.Option{Text: text, IsCorrect: o.IsCorrect, OrderIndex: order})
		}
		if correct != 1 {
			return nil, apperr.Validation("multiple_choice questions must have exactly one correct option")
		}
		return models.MultipleChoice{Options: opts}, nil
	case models.TypeShortAnswer:
		expected := ""
		if correctAnswer != nil {
			expected = strings.TrimSpace(*correctAnswer)
		}
		if expected == "" {
			return nil, apperr.Validation("short_answer questions require a correct_answer")
		}
		return models.ShortAnswer{Expected: expected}, nil
	case models.TypeTrueFalse:
		expected := ""
		if correctAnswer != nil {
			expected = strings.ToLower(strings.TrimSpace(*correctAnswer))
		}
		if expected != "true" && expected != "false" {
			return nil, apperr.Validation(`true_false questions require correct_answer "true" or "false"`)
		}
		return models.TrueFalse{Expected: expected}, nil
	}
	return nil, apperr.Validation("invalid question_type %q", t)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
