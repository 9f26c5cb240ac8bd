package roster

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository answers roster checks from the course_tutors, course_students and
// course_modules tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a roster repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) IsCourseAuthor(ctx context.Context, userID, courseID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM course_tutors WHERE course_id = $1 AND tutor_id = $2)`, courseID, userID)
}

// IsEnrolled only counts enrollments whose status is 'enrolled'.
func (r *Repository) IsEnrolled(ctx context.Context, userID, courseID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM course_students WHERE course_id = $1 AND student_id = $2 AND status = 'enrolled')`, courseID, userID)
}

func (r *Repository) ModuleInCourse(ctx context.Context, moduleID, courseID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM course_modules WHERE id = $1 AND course_id = $2)`, moduleID, courseID)
}

func (r *Repository) exists(ctx context.Context, q string, args ...any) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, q, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("roster check: %w", err)
	}
	return ok, nil
}
