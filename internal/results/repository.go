package results

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-learn/quiz-backend/internal/attempts"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
)

// Repository reads attempt history from PostgreSQL.
type Repository struct {
	*quizzes.Repository
	pool *pgxpool.Pool
}

// NewRepository creates a results repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Repository: quizzes.NewRepository(pool), pool: pool}
}

func (r *Repository) ListAttempts(ctx context.Context, quizID, studentID int64) ([]models.Attempt, error) {
	if studentID == 0 {
		return attempts.ListAttempts(ctx, r.pool, `WHERE quiz_id = $1
			ORDER BY submitted_at DESC NULLS FIRST, started_at DESC, id DESC`, quizID)
	}
	return attempts.ListAttempts(ctx, r.pool, `WHERE quiz_id = $1 AND student_id = $2
		ORDER BY submitted_at DESC NULLS FIRST, started_at DESC, id DESC`, quizID, studentID)
}

func (r *Repository) ListQuizAnswers(ctx context.Context, quizID int64) ([]models.Answer, error) {
	return attempts.ListAnswers(ctx, r.pool, `WHERE attempt_id IN (SELECT id FROM quiz_attempts WHERE quiz_id = $1)`, quizID)
}
