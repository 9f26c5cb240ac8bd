package attempts_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aura-learn/quiz-backend/internal/apperr"
	"github.com/aura-learn/quiz-backend/internal/attempts"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
	"github.com/aura-learn/quiz-backend/internal/results"
	"github.com/aura-learn/quiz-backend/internal/roster"
	"github.com/aura-learn/quiz-backend/pkg/database"
)

// newPostgres connects to QUIZ_TEST_DATABASE_URL, applies migrations and seeds a course
// with one tutor and one student. Each run uses a fresh course id.
func newPostgres(t *testing.T) (*pgxpool.Pool, int64) {
	t.Helper()
	dsn := os.Getenv("QUIZ_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("QUIZ_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	logger := zap.NewNop()
	pool, err := database.NewPostgresPool(ctx, dsn, 0, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.Migrate(ctx, pool, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	course := time.Now().UnixNano()
	if _, err := pool.Exec(ctx, `INSERT INTO course_tutors (course_id, tutor_id) VALUES ($1, $2)`, course, tutor.UserID); err != nil {
		t.Fatalf("seed tutor: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO course_students (course_id, student_id) VALUES ($1, $2)`, course, student.UserID); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM quizzes WHERE course_id = $1`, course)
		_, _ = pool.Exec(context.Background(), `DELETE FROM course_tutors WHERE course_id = $1`, course)
		_, _ = pool.Exec(context.Background(), `DELETE FROM course_students WHERE course_id = $1`, course)
	})
	return pool, course
}

func TestPostgresAttemptFlow(t *testing.T) {
	pool, course := newPostgres(t)
	ctx := context.Background()
	rp := roster.NewRepository(pool)
	quizSvc := quizzes.NewService(quizzes.NewRepository(pool), rp, zap.NewNop())
	svc := attempts.NewService(attempts.NewRepository(pool), rp, zap.NewNop())

	q, err := quizSvc.CreateQuiz(ctx, tutor, quizzes.CreateQuizInput{CourseID: course, Title: "Integration"})
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	mc, err := quizSvc.AddQuestion(ctx, tutor, q.ID, quizzes.QuestionInput{
		Type: "multiple_choice", Text: "2+2?",
		Options: []quizzes.OptionInput{{Text: "4", IsCorrect: true}, {Text: "5"}},
	})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	sa, err := quizSvc.AddQuestion(ctx, tutor, q.ID, quizzes.QuestionInput{
		Type: "short_answer", Text: "Capital of France?", CorrectAnswer: ptr("Paris"), Points: ptr(3.0),
	})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}

	const n = 8
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Start(ctx, student, q.ID)
			if err != nil {
				t.Errorf("Start: %v", err)
				return
			}
			ids[i] = res.Attempt.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent starts returned different attempts: %v", ids)
		}
	}
	attemptID := ids[0]

	if _, err := svc.SaveAnswer(ctx, student, attemptID, attempts.SaveAnswerInput{QuestionID: sa.ID, AnswerText: ptr("Lyon")}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if _, err := svc.SaveAnswer(ctx, student, attemptID, attempts.SaveAnswerInput{QuestionID: sa.ID, AnswerText: ptr(" paris ")}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if _, err := svc.SaveAnswer(ctx, student, attemptID, attempts.SaveAnswerInput{QuestionID: mc.ID, OptionID: &mc.Options[1].ID}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	sub, err := svc.Submit(ctx, student, attemptID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Score != 75 || sub.TotalPoints != 3 || sub.MaxPoints != 4 || !sub.IsPassing {
		t.Fatalf("submission: got=%+v", sub)
	}
	_, err = svc.Submit(ctx, student, attemptID)
	wantKind(t, err, apperr.KindAttemptCompleted)
	_, err = svc.Start(ctx, student, q.ID)
	wantKind(t, err, apperr.KindAttemptLimitExceeded)

	report, err := results.NewService(results.NewRepository(pool), rp, zap.NewNop()).AuthorView(ctx, tutor, q.ID)
	if err != nil {
		t.Fatalf("AuthorView: %v", err)
	}
	if len(report.Attempts) != 1 || len(report.Attempts[0].Answers) != 2 {
		t.Fatalf("author view: got=%+v", report)
	}
}
