package attempts

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-learn/quiz-backend/internal/apperr"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
	"github.com/aura-learn/quiz-backend/pkg/database"
)

const attemptColumns = `id, quiz_id, student_id, started_at, submitted_at, is_completed, score, total_points, max_points`

const answerColumns = `id, attempt_id, question_id, answer_text, option_id, is_correct, points_earned, answered_at`

// Repository stores attempts and answers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attempts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithinTx runs fn in a single database transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

func (r *Repository) GetAttempt(ctx context.Context, id int64) (*models.Attempt, error) {
	return loadAttempt(ctx, r.pool, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id)
}

func (r *Repository) GetQuiz(ctx context.Context, id int64) (*models.Quiz, error) {
	return quizzes.LoadQuiz(ctx, r.pool, id)
}

func (r *Repository) ListQuestions(ctx context.Context, quizID int64) ([]models.Question, error) {
	return quizzes.LoadQuestions(ctx, r.pool, quizID)
}

func (r *Repository) ListAnswers(ctx context.Context, attemptID int64) ([]models.Answer, error) {
	return ListAnswers(ctx, r.pool, `WHERE attempt_id = $1`, attemptID)
}

type pgTx struct {
	tx pgx.Tx
}

// LockStudentQuiz takes a transaction-scoped advisory lock keyed by the (quiz, student) pair.
func (t *pgTx) LockStudentQuiz(ctx context.Context, quizID, studentID int64) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(quizID, studentID))
	return err
}

func (t *pgTx) GetQuiz(ctx context.Context, id int64) (*models.Quiz, error) {
	return quizzes.LoadQuiz(ctx, t.tx, id)
}

func (t *pgTx) OpenAttempt(ctx context.Context, quizID, studentID int64) (*models.Attempt, error) {
	a, err := loadAttempt(ctx, t.tx, `SELECT `+attemptColumns+` FROM quiz_attempts
		WHERE quiz_id = $1 AND student_id = $2 AND NOT is_completed`, quizID, studentID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil, nil
	}
	return a, err
}

func (t *pgTx) CountCompleted(ctx context.Context, quizID, studentID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM quiz_attempts
		WHERE quiz_id = $1 AND student_id = $2 AND is_completed`, quizID, studentID).Scan(&n)
	return n, err
}

// CreateAttempt relies on ux_quiz_attempts_open to reject a second in-progress attempt.
func (t *pgTx) CreateAttempt(ctx context.Context, a *models.Attempt) error {
	return t.tx.QueryRow(ctx, `INSERT INTO quiz_attempts (quiz_id, student_id, started_at, is_completed)
		VALUES ($1, $2, $3, FALSE) RETURNING id`, a.QuizID, a.StudentID, a.StartedAt).Scan(&a.ID)
}

func (t *pgTx) LockAttempt(ctx context.Context, id int64) (*models.Attempt, error) {
	return loadAttempt(ctx, t.tx, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	return quizzes.LoadQuestion(ctx, t.tx, id)
}

// UpsertAnswer replaces the value of an existing answer and clears any grading on it.
func (t *pgTx) UpsertAnswer(ctx context.Context, a *models.Answer) error {
	const sql = `INSERT INTO quiz_answers (attempt_id, question_id, answer_text, option_id, answered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			answer_text = EXCLUDED.answer_text,
			option_id = EXCLUDED.option_id,
			answered_at = EXCLUDED.answered_at,
			is_correct = NULL,
			points_earned = NULL
		RETURNING id`
	return t.tx.QueryRow(ctx, sql, a.AttemptID, a.QuestionID, a.AnswerText, a.OptionID, a.AnsweredAt).Scan(&a.ID)
}

func (t *pgTx) ListQuestions(ctx context.Context, quizID int64) ([]models.Question, error) {
	return quizzes.LoadQuestions(ctx, t.tx, quizID)
}

func (t *pgTx) ListAnswers(ctx context.Context, attemptID int64) ([]models.Answer, error) {
	return ListAnswers(ctx, t.tx, `WHERE attempt_id = $1`, attemptID)
}

func (t *pgTx) SaveGradedAnswers(ctx context.Context, answers []models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range answers {
		batch.Queue(`UPDATE quiz_answers SET is_correct = $2, points_earned = $3 WHERE id = $1`, a.ID, a.IsCorrect, a.PointsEarned)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) CompleteAttempt(ctx context.Context, a *models.Attempt) error {
	tag, err := t.tx.Exec(ctx, `UPDATE quiz_attempts SET submitted_at = $2, is_completed = TRUE,
		score = $3, total_points = $4, max_points = $5
		WHERE id = $1 AND NOT is_completed`, a.ID, a.SubmittedAt, a.Score, a.TotalPoints, a.MaxPoints)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindAttemptCompleted, "this quiz attempt is already completed")
	}
	return nil
}

// ListAttempts reads attempts matching a WHERE clause.
func ListAttempts(ctx context.Context, q database.Querier, where string, args ...any) ([]models.Attempt, error) {
	rows, err := q.Query(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()
	var list []models.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// ListAnswers reads answers matching a WHERE clause, ordered by question then id.
func ListAnswers(ctx context.Context, q database.Querier, where string, args ...any) ([]models.Answer, error) {
	rows, err := q.Query(ctx, `SELECT `+answerColumns+` FROM quiz_answers `+where+` ORDER BY attempt_id, question_id, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()
	var list []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.AnswerText, &a.OptionID,
			&a.IsCorrect, &a.PointsEarned, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func loadAttempt(ctx context.Context, q database.Querier, sql string, args ...any) (*models.Attempt, error) {
	a, err := scanAttempt(q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("attempt")
	}
	return a, err
}

func scanAttempt(row pgx.Row) (*models.Attempt, error) {
	var a models.Attempt
	if err := row.Scan(&a.ID, &a.QuizID, &a.StudentID, &a.StartedAt, &a.SubmittedAt, &a.IsCompleted,
		&a.Score, &a.TotalPoints, &a.MaxPoints); err != nil {
		return nil, err
	}
	return &a, nil
}

// lockKey folds the pair into the bigint key space of pg_advisory_xact_lock.
func lockKey(quizID, studentID int64) int64 {
	h := fnv.New64a()
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(quizID >> (8 * i))
		b[8+i] = byte(studentID >> (8 * i))
	}
	_, _ = h.Write(b[:])
	return int64(h.Sum64())
}
