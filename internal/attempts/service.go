// Package attempts runs the attempt lifecycle: start or resume, save answers, submit for grading.
package attempts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-learn/quiz-backend/internal/apperr"
	"github.com/aura-learn/quiz-backend/internal/events"
	"github.com/aura-learn/quiz-backend/internal/grading"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
	"github.com/aura-learn/quiz-backend/internal/roster"
)

// Store is the attempt persistence. Mutations run through WithinTx.
type Store interface {
	// WithinTx runs fn in one transaction; any error rolls the whole unit back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetAttempt(ctx context.Context, id int64) (*models.Attempt, error)
	GetQuiz(ctx context.Context, id int64) (*models.Quiz, error)
	ListQuestions(ctx context.Context, quizID int64) ([]models.Question, error)
	ListAnswers(ctx context.Context, attemptID int64) ([]models.Answer, error)
}

// Tx is the transactional view of the store.
type Tx interface {
	// LockStudentQuiz serialises every start for the (quiz, student) pair until the transaction ends.
	LockStudentQuiz(ctx context.Context, quizID, studentID int64) error
	GetQuiz(ctx context.Context, id int64) (*models.Quiz, error)
	// OpenAttempt returns the in-progress attempt of the pair, or nil.
	OpenAttempt(ctx context.Context, quizID, studentID int64) (*models.Attempt, error)
	CountCompleted(ctx context.Context, quizID, studentID int64) (int, error)
	CreateAttempt(ctx context.Context, a *models.Attempt) error

	// LockAttempt reads an attempt and holds its row lock until the transaction ends.
	LockAttempt(ctx context.Context, id int64) (*models.Attempt, error)
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	// UpsertAnswer inserts or replaces the answer keyed by (attempt_id, question_id).
	UpsertAnswer(ctx context.Context, a *models.Answer) error
	ListQuestions(ctx context.Context, quizID int64) ([]models.Question, error)
	ListAnswers(ctx context.Context, attemptID int64) ([]models.Answer, error)
	SaveGradedAnswers(ctx context.Context, answers []models.Answer) error
	CompleteAttempt(ctx context.Context, a *models.Attempt) error
}

// Policy holds server-side attempt rules.
type Policy struct {
	// EnforceTimeLimit rejects answers saved after the quiz time limit plus Grace.
	EnforceTimeLimit bool
	Grace            time.Duration
}

// SaveAnswerInput is the body for saving one answer.
type SaveAnswerInput struct {
	QuestionID int64   `json:"question_id" binding:"required"`
	AnswerText *string `json:"answer_text"`
	OptionID   *int64  `json:"option_id"`
}

// StartResult is the attempt returned by Start.
type StartResult struct {
	Attempt          models.Attempt `json:"attempt"`
	TimeLimitMinutes *int           `json:"time_limit_minutes"`
	Resumed          bool           `json:"resumed"`
}

// AnswerResult is one graded answer with the details a student sees after submitting.
type AnswerResult struct {
	QuestionID    int64               `json:"question_id"`
	QuestionText  string              `json:"question_text"`
	QuestionType  models.QuestionType `json:"question_type"`
	AnswerText    *string             `json:"answer_text"`
	OptionID      *int64              `json:"option_id"`
	OptionText    *string             `json:"option_text"`
	IsCorrect     bool                `json:"is_correct"`
	PointsEarned  float64             `json:"points_earned"`
	CorrectAnswer string              `json:"correct_answer"`
}

// Submission is the outcome of Submit.
type Submission struct {
	AttemptID    int64          `json:"attempt_id"`
	Score        float64        `json:"score"`
	TotalPoints  float64        `json:"total_points"`
	MaxPoints    float64        `json:"max_points"`
	IsPassing    bool           `json:"is_passing"`
	PassingScore float64        `json:"passing_score"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	Answers      []AnswerResult `json:"answers"`
}

// SavedAnswer is the value already stored for a question.
type SavedAnswer struct {
	AnswerText *string `json:"answer_text"`
	OptionID   *int64  `json:"option_id"`
}

// Sheet is the learner's question sheet for an in-progress attempt.
type Sheet struct {
	Quiz            models.Quiz               `json:"quiz"`
	Attempt         models.Attempt            `json:"attempt"`
	Questions       []quizzes.LearnerQuestion `json:"questions"`
	ExistingAnswers map[int64]SavedAnswer     `json:"existing_answers"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPolicy sets the attempt policy.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithPublisher sets where lifecycle events go. The default discards them.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// Service implements the attempt lifecycle for students.
type Service struct {
	store  Store
	roster roster.Provider
	events events.Publisher
	policy Policy
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates an attempt lifecycle service.
func NewService(store Store, rp roster.Provider, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		roster: rp,
		events: events.Nop{},
		now:    time.Now,
		logger: logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start resumes the student's in-progress attempt or creates a new one.
// The attempt limit is checked against the quiz as it is now.
func (s *Service) Start(ctx context.Context, student models.Caller, quizID int64) (*StartResult, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnrolled(ctx, student, quiz.CourseID); err != nil {
		return nil, err
	}

	var res StartResult
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockStudentQuiz(ctx, quizID, student.UserID); err != nil {
			return fmt.Errorf("lock student quiz: %w", err)
		}
		quiz, err := tx.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		res.TimeLimitMinutes = quiz.TimeLimitMinutes
		if !quiz.IsActive {
			return apperr.New(apperr.KindQuizInactive, "this quiz is not available")
		}

		open, err := tx.OpenAttempt(ctx, quizID, student.UserID)
		if err != nil {
			return fmt.Errorf("find open attempt: %w", err)
		}
		if open != nil {
			res.Attempt, res.Resumed = *open, true
			return nil
		}

		completed, err := tx.CountCompleted(ctx, quizID, student.UserID)
		if err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}
		if quiz.AttemptsExhausted(completed) {
			return apperr.Newf(apperr.KindAttemptLimitExceeded, "maximum attempts (%d) reached for this quiz", *quiz.MaxAttempts)
		}

		a := &models.Attempt{QuizID: quizID, StudentID: student.UserID, StartedAt: s.now().UTC()}
		if err := tx.CreateAttempt(ctx, a); err != nil {
			return fmt.Errorf("create attempt: %w", err)
		}
		res.Attempt = *a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Resumed {
		s.logger.Info("attempt resumed", zap.Int64("attempt_id", res.Attempt.ID), zap.Int64("quiz_id", quizID), zap.Int64("student_id", student.UserID))
		return &res, nil
	}
	s.logger.Info("attempt started", zap.Int64("attempt_id", res.Attempt.ID), zap.Int64("quiz_id", quizID), zap.Int64("student_id", student.UserID))
	s.publish(ctx, events.Event{
		Type:      events.AttemptStarted,
		QuizID:    quizID,
		AttemptID: res.Attempt.ID,
		StudentID: student.UserID,
	})
	return &res, nil
}

// Questions returns the learner sheet of an in-progress attempt and the answers saved so far.
func (s *Service) Questions(ctx context.Context, student models.Caller, attemptID int64) (*Sheet, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(a, student); err != nil {
		return nil, err
	}
	if a.IsCompleted {
		return nil, errAttemptCompleted()
	}
	quiz, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, a.QuizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	sheet := &Sheet{
		Quiz:            *quiz,
		Attempt:         *a,
		Questions:       quizzes.QuestionsForAttempt(questions),
		ExistingAnswers: make(map[int64]SavedAnswer, len(answers)),
	}
	for _, ans := range answers {
		sheet.ExistingAnswers[ans.QuestionID] = SavedAnswer{AnswerText: ans.AnswerText, OptionID: ans.OptionID}
	}
	return sheet, nil
}

// SaveAnswer stores or replaces the answer to one question. Nothing is graded here.
func (s *Service) SaveAnswer(ctx context.Context, student models.Caller, attemptID int64, in SaveAnswerInput) (*models.Answer, error) {
	if in.QuestionID <= 0 {
		return nil, apperr.Validation("question_id is required")
	}

	var saved models.Answer
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if err := checkOwner(a, student); err != nil {
			return err
		}
		if a.IsCompleted {
			return errAttemptCompleted()
		}
		if s.policy.EnforceTimeLimit {
			quiz, err := tx.GetQuiz(ctx, a.QuizID)
			if err != nil {
				return err
			}
			if deadline, ok := quiz.Deadline(a.StartedAt); ok && s.now().After(deadline.Add(s.policy.Grace)) {
				return apperr.New(apperr.KindTimeLimitExceeded, "time limit for this attempt has expired")
			}
		}

		q, err := tx.GetQuestion(ctx, in.QuestionID)
		if apperr.IsKind(err, apperr.KindNotFound) || (err == nil && q.QuizID != a.QuizID) {
			return apperr.New(apperr.KindInvalidQuestion, "invalid question")
		}
		if err != nil {
			return err
		}

		ans, err := answerFor(q, in)
		if err != nil {
			return err
		}
		ans.AttemptID = a.ID
		ans.AnsweredAt = s.now().UTC()
		if err := tx.UpsertAnswer(ctx, &ans); err != nil {
			return fmt.Errorf("save answer: %w", err)
		}
		saved = ans
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("answer saved", zap.Int64("attempt_id", attemptID), zap.Int64("question_id", in.QuestionID))
	return &saved, nil
}

// Submit grades every saved answer and completes the attempt in one transaction.
func (s *Service) Submit(ctx context.Context, student models.Caller, attemptID int64) (*Submission, error) {
	var (
		sub  Submission
		quiz *models.Quiz
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if err := checkOwner(a, student); err != nil {
			return err
		}
		if a.IsCompleted {
			return errAttemptCompleted()
		}
		if quiz, err = tx.GetQuiz(ctx, a.QuizID); err != nil {
			return err
		}
		questions, err := tx.ListQuestions(ctx, a.QuizID)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		answers, err := tx.ListAnswers(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}

		res := grading.Grade(questions, answers)
		if err := tx.SaveGradedAnswers(ctx, res.Answers); err != nil {
			return fmt.Errorf("save graded answers: %w", err)
		}
		now := s.now().UTC()
		a.SubmittedAt = &now
		a.IsCompleted = true
		a.Score = &res.Score
		a.TotalPoints = &res.TotalPoints
		a.MaxPoints = &res.MaxPoints
		if err := tx.CompleteAttempt(ctx, a); err != nil {
			return fmt.Errorf("complete attempt: %w", err)
		}

		sub = Submission{
			AttemptID:    a.ID,
			Score:        res.Score,
			TotalPoints:  res.TotalPoints,
			MaxPoints:    res.MaxPoints,
			IsPassing:    grading.IsPassing(res.Score, quiz.PassingScore),
			PassingScore: quiz.PassingScore,
			SubmittedAt:  now,
			Answers:      answerResults(questions, res.Answers),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attempt submitted",
		zap.Int64("attempt_id", attemptID),
		zap.Int64("quiz_id", quiz.ID),
		zap.Int64("student_id", student.UserID),
		zap.Float64("score", sub.Score),
		zap.Bool("passing", sub.IsPassing),
	)
	score := sub.Score
	s.publish(ctx, events.Event{
		Type:      events.AttemptSubmitted,
		QuizID:    quiz.ID,
		AttemptID: attemptID,
		StudentID: student.UserID,
		Score:     &score,
	})
	return &sub, nil
}

// answerFor converts the submitted value into the stored form for the question's type.
func answerFor(q *models.Question, in SaveAnswerInput) (models.Answer, error) {
	ans := models.Answer{QuestionID: q.ID}
	err := models.SwitchBody(q.Body,
		func(m models.MultipleChoice) error {
			if in.OptionID != nil {
				if _, ok := m.Option(*in.OptionID); !ok {
					return apperr.Validation("option %d does not belong to question %d", *in.OptionID, q.ID)
				}
				ans.OptionID = in.OptionID
				return nil
			}
			ans.AnswerText = trimmed(in.AnswerText)
			return nil
		},
		func(models.ShortAnswer) error {
			ans.AnswerText = trimmed(in.AnswerText)
			return nil
		},
		func(models.TrueFalse) error {
			if t := trimmed(in.AnswerText); t != nil {
				v := strings.ToLower(*t)
				ans.AnswerText = &v
			}
			return nil
		},
	)
	return ans, err
}

func answerResults(questions []models.Question, graded []models.Answer) []AnswerResult {
	byID := make(map[int64]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]AnswerResult, 0, len(graded))
	for _, a := range graded {
		r := AnswerResult{
			QuestionID: a.QuestionID,
			AnswerText: a.AnswerText,
			OptionID:   a.OptionID,
		}
		if a.IsCorrect != nil {
			r.IsCorrect = *a.IsCorrect
		}
		if a.PointsEarned != nil {
			r.PointsEarned = *a.PointsEarned
		}
		if q, ok := byID[a.QuestionID]; ok {
			r.QuestionText = q.Text
			r.QuestionType = q.Type()
			r.CorrectAnswer = q.CorrectAnswer()
			if a.OptionID != nil {
				if mc, ok := q.Body.(models.MultipleChoice); ok {
					if o, ok := mc.Option(*a.OptionID); ok {
						text := o.Text
						r.OptionText = &text
					}
				}
			}
		}
		out = append(out, r)
	}
	return out
}

func (s *Service) requireEnrolled(ctx context.Context, student models.Caller, courseID int64) error {
	ok, err := s.roster.IsEnrolled(ctx, student.UserID, courseID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !ok {
		return apperr.New(apperr.KindNotEnrolled, "quiz not found or not enrolled in course")
	}
	return nil
}

// publish is best effort: the transaction has already committed.
func (s *Service) publish(ctx context.Context, e events.Event) {
	e.At = s.now().UTC()
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event", zap.String("type", e.Type), zap.Int64("attempt_id", e.AttemptID), zap.Error(err))
	}
}

func checkOwner(a *models.Attempt, student models.Caller) error {
	if a.StudentID != student.UserID {
		return apperr.New(apperr.KindForbidden, "attempt belongs to another student")
	}
	return nil
}

func errAttemptCompleted() error {
	return apperr.New(apperr.KindAttemptCompleted, "this quiz attempt is already completed")
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
