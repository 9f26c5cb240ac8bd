package quizzes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-learn/quiz-backend/internal/apperr"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/pkg/database"
)

const quizColumns = `id, course_id, module_id, title, description, instructions, time_limit_minutes,
	passing_score, max_attempts, is_active, order_index, created_by, created_at`

const questionColumns = `id, quiz_id, question_type, question_text, points, order_index, correct_answer, created_at`

// Repository stores quizzes, questions and options in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a quizzes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateQuiz inserts a quiz and sets its id and created_at.
func (r *Repository) CreateQuiz(ctx context.Context, q *models.Quiz) error {
	const sql = `INSERT INTO quizzes (course_id, module_id, title, description, instructions, time_limit_minutes,
		passing_score, max_attempts, is_active, order_index, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, sql, q.CourseID, q.ModuleID, q.Title, q.Description, q.Instructions, q.TimeLimitMinutes,
		q.PassingScore, q.MaxAttempts, q.IsActive, q.OrderIndex, q.CreatedBy).Scan(&q.ID, &q.CreatedAt)
}

// GetQuiz returns a quiz by id.
func (r *Repository) GetQuiz(ctx context.Context, id int64) (*models.Quiz, error) {
	return LoadQuiz(ctx, r.pool, id)
}

// UpdateQuiz writes every mutable column of q.
func (r *Repository) UpdateQuiz(ctx context.Context, q *models.Quiz) error {
	const sql = `UPDATE quizzes SET module_id = $2, title = $3, description = $4, instructions = $5,
		time_limit_minutes = $6, passing_score = $7, max_attempts = $8, is_active = $9, order_index = $10
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, sql, q.ID, q.ModuleID, q.Title, q.Description, q.Instructions,
		q.TimeLimitMinutes, q.PassingScore, q.MaxAttempts, q.IsActive, q.OrderIndex)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("quiz")
	}
	return nil
}

// DeleteQuiz removes a quiz; questions, options, attempts and answers go with it via ON DELETE CASCADE.
func (r *Repository) DeleteQuiz(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("quiz")
	}
	return nil
}

// ListQuizzes returns the quizzes of a course ordered by order_index, created_at.
func (r *Repository) ListQuizzes(ctx context.Context, courseID int64, activeOnly bool) ([]models.Quiz, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes
		WHERE course_id = $1 AND (is_active OR NOT $2)
		ORDER BY order_index, created_at, id`, courseID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// CreateQuestion inserts the question and its options in one transaction.
func (r *Repository) CreateQuestion(ctx context.Context, q *models.Question) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const sql = `INSERT INTO quiz_questions (quiz_id, question_type, question_text, points, order_index, correct_answer)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
		if err := tx.QueryRow(ctx, sql, q.QuizID, string(q.Type()), q.Text, q.Points, q.OrderIndex, q.StoredAnswer()).
			Scan(&q.ID, &q.CreatedAt); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		return insertOptions(ctx, tx, q)
	})
}

// GetQuestion returns a question with its options.
func (r *Repository) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	return LoadQuestion(ctx, r.pool, id)
}

// UpdateQuestion writes the question columns and, when asked, swaps the option set in the same transaction.
func (r *Repository) UpdateQuestion(ctx context.Context, q *models.Question, replaceOptions bool) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE quiz_questions SET question_text = $2, points = $3, order_index = $4, correct_answer = $5
			WHERE id = $1`, q.ID, q.Text, q.Points, q.OrderIndex, q.StoredAnswer())
		if err != nil {
			return fmt.Errorf("update question: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("question")
		}
		if !replaceOptions {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quiz_question_options WHERE question_id = $1`, q.ID); err != nil {
			return fmt.Errorf("delete options: %w", err)
		}
		return insertOptions(ctx, tx, q)
	})
}

// DeleteQuestion removes a question; options and answers cascade.
func (r *Repository) DeleteQuestion(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quiz_questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("question")
	}
	return nil
}

// ListQuestions returns the questions of a quiz in display order.
func (r *Repository) ListQuestions(ctx context.Context, quizID int64) ([]models.Question, error) {
	return LoadQuestions(ctx, r.pool, quizID)
}

// insertOptions stores the options of a multiple_choice body and writes the new ids back into q.
func insertOptions(ctx context.Context, tx pgx.Tx, q *models.Question) error {
	mc, ok := q.Body.(models.MultipleChoice)
	if !ok {
		return nil
	}
	opts := make([]models.Option, len(mc.Options))
	for i, o := range mc.Options {
		o.QuestionID = q.ID
		if err := tx.QueryRow(ctx, `INSERT INTO quiz_question_options (question_id, option_text, is_correct, order_index)
			VALUES ($1, $2, $3, $4) RETURNING id`, q.ID, o.Text, o.IsCorrect, o.OrderIndex).Scan(&o.ID); err != nil {
			return fmt.Errorf("insert option: %w", err)
		}
		opts[i] = o
	}
	q.Body = models.MultipleChoice{Options: opts}
	return nil
}

// LoadQuiz reads one quiz through q, which may be a pool or a transaction.
func LoadQuiz(ctx context.Context, q database.Querier, id int64) (*models.Quiz, error) {
	quiz, err := scanQuiz(q.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("quiz")
	}
	return quiz, err
}

// LoadQuestion reads one question and its options.
func LoadQuestion(ctx context.Context, q database.Querier, id int64) (*models.Question, error) {
	list, err := loadQuestions(ctx, q, `SELECT `+questionColumns+` FROM quiz_questions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("question")
	}
	return &list[0], nil
}

// LoadQuestions reads every question of a quiz with its options, ordered by order_index.
func LoadQuestions(ctx context.Context, q database.Querier, quizID int64) ([]models.Question, error) {
	return loadQuestions(ctx, q, `SELECT `+questionColumns+` FROM quiz_questions WHERE quiz_id = $1 ORDER BY order_index, id`, quizID)
}

type questionRow struct {
	q             models.Question
	qtype         string
	correctAnswer *string
}

func loadQuestions(ctx context.Context, q database.Querier, sql string, arg int64) ([]models.Question, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	var raw []questionRow
	var ids []int64
	for rows.Next() {
		var r questionRow
		if err := rows.Scan(&r.q.ID, &r.q.QuizID, &r.qtype, &r.q.Text, &r.q.Points, &r.q.OrderIndex, &r.correctAnswer, &r.q.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		raw = append(raw, r)
		ids = append(ids, r.q.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	options, err := loadOptions(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Question, 0, len(raw))
	for _, r := range raw {
		t, err := models.ParseQuestionType(r.qtype)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", r.q.ID, err)
		}
		if r.q.Body, err = models.NewBody(t, r.correctAnswer, options[r.q.ID]); err != nil {
			return nil, err
		}
		out = append(out, r.q)
	}
	return out, nil
}

func loadOptions(ctx context.Context, q database.Querier, questionIDs []int64) (map[int64][]models.Option, error) {
	rows, err := q.Query(ctx, `SELECT id, question_id, option_text, is_correct, order_index
		FROM quiz_question_options WHERE question_id = ANY($1)
		ORDER BY question_id, order_index, id`, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()
	m := make(map[int64][]models.Option)
	for rows.Next() {
		var o models.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect, &o.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		m[o.QuestionID] = append(m[o.QuestionID], o)
	}
	return m, rows.Err()
}

func scanQuiz(row pgx.Row) (*models.Quiz, error) {
	var q models.Quiz
	err := row.Scan(&q.ID, &q.CourseID, &q.ModuleID, &q.Title, &q.Description, &q.Instructions, &q.TimeLimitMinutes,
		&q.PassingScore, &q.MaxAttempts, &q.IsActive, &q.OrderIndex, &q.CreatedBy, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
