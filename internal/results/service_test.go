package results_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aura-learn/quiz-backend/internal/apperr"
	"github.com/aura-learn/quiz-backend/internal/attempts"
	"github.com/aura-learn/quiz-backend/internal/memstore"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
	"github.com/aura-learn/quiz-backend/internal/results"
	"github.com/aura-learn/quiz-backend/internal/roster"
)

const courseID = 3

var (
	tutor   = models.Caller{UserID: 10, Role: models.RoleTutor}
	student = models.Caller{UserID: 20, Role: models.RoleStudent}
	peer    = models.Caller{UserID: 21, Role: models.RoleStudent}
)

type env struct {
	store    *memstore.Store
	quizzes  *quizzes.Service
	attempts *attempts.Service
	results  *results.Service
	now      time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{store: memstore.New(), now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return e.now }
	e.store.SetClock(clock)
	rp := roster.NewStatic().AssignTutor(courseID, tutor.UserID).Enroll(courseID, student.UserID).Enroll(courseID, peer.UserID)
	e.quizzes = quizzes.NewService(e.store, rp, zap.NewNop())
	e.attempts = attempts.NewService(e.store, rp, zap.NewNop(), attempts.WithClock(clock))
	e.results = results.NewService(e.store, rp, zap.NewNop())
	return e
}

func (e *env) tick() { e.now = e.now.Add(time.Minute) }

// quiz creates a two-question quiz with one point each.
func (e *env) quiz(t *testing.T, in quizzes.CreateQuizInput) (quizID, q1, q2 int64) {
	t.Helper()
	ctx := context.Background()
	in.CourseID = courseID
	if in.Title == "" {
		in.Title = "Basics"
	}
	q, err := e.quizzes.CreateQuiz(ctx, tutor, in)
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	key1, key2 := "yes", "true"
	a, err := e.quizzes.AddQuestion(ctx, tutor, q.ID, quizzes.QuestionInput{Type: "short_answer", Text: "Say yes", CorrectAnswer: &key1})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	b, err := e.quizzes.AddQuestion(ctx, tutor, q.ID, quizzes.QuestionInput{Type: "true_false", Text: "True?", CorrectAnswer: &key2, OrderIndex: 1})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	return q.ID, a.ID, b.ID
}

// take runs one full attempt, saving a text answer for each listed question.
func (e *env) take(t *testing.T, c models.Caller, quizID int64, answers map[int64]string) int64 {
	t.Helper()
	ctx := context.Background()
	res, err := e.attempts.Start(ctx, c, quizID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for qid, v := range answers {
		v := v
		if _, err := e.attempts.SaveAnswer(ctx, c, res.Attempt.ID, attempts.SaveAnswerInput{QuestionID: qid, AnswerText: &v}); err != nil {
			t.Fatalf("SaveAnswer: %v", err)
		}
	}
	e.tick()
	if _, err := e.attempts.Submit(ctx, c, res.Attempt.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	e.tick()
	return res.Attempt.ID
}

func TestLearnerViewLatestAttempt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	quizID, q1, q2 := e.quiz(t, quizzes.CreateQuizInput{MaxAttempts: quizzes.Value(3)})

	first := e.take(t, student, quizID, map[int64]string{q1: "yes", q2: "true"})
	second := e.take(t, student, quizID, map[int64]string{q1: "no"})
	e.take(t, peer, quizID, map[int64]string{q1: "yes"})

	sum, err := e.results.LearnerView(ctx, student, quizID)
	if err != nil {
		t.Fatalf("LearnerView: %v", err)
	}
	if len(sum.Attempts) != 2 || sum.CompletedAttempts != 2 || !sum.CanTake {
		t.Fatalf("summary: got=%+v", sum)
	}
	if sum.LatestAttemptID == nil || *sum.LatestAttemptID != second || *sum.LatestScore != 0 || *sum.IsPassing {
		t.Fatalf("latest should be the second attempt, got=%+v", sum)
	}
	if sum.Attempts[0].ID != second || !sum.Attempts[0].IsLatest || sum.Attempts[1].ID != first || sum.Attempts[1].IsLatest {
		t.Fatalf("attempts should be newest first with one latest: %+v", sum.Attempts)
	}
	if !*sum.Attempts[1].IsPassing {
		t.Fatalf("first attempt scored 100 and should pass")
	}

	// is_passing follows the current passing score.
	if _, err := e.quizzes.UpdateQuiz(ctx, tutor, quizID, quizzes.UpdateQuizInput{PassingScore: quizzes.Value(0.0)}); err != nil {
		t.Fatalf("UpdateQuiz: %v", err)
	}
	sum, _ = e.results.LearnerView(ctx, student, quizID)
	if !*sum.IsPassing {
		t.Fatalf("score 0 passes a passing score of 0")
	}
}

func TestLearnerViewInProgressAndExhausted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	quizID, q1, _ := e.quiz(t, quizzes.CreateQuizInput{})

	sum, err := e.results.LearnerView(ctx, student, quizID)
	if err != nil {
		t.Fatalf("LearnerView: %v", err)
	}
	if len(sum.Attempts) != 0 || sum.LatestAttemptID != nil || !sum.CanTake {
		t.Fatalf("empty summary: got=%+v", sum)
	}

	e.take(t, student, quizID, map[int64]string{q1: "yes"})
	sum, _ = e.results.LearnerView(ctx, student, quizID)
	if sum.CanTake || *sum.LatestScore != 50 {
		t.Fatalf("single attempt used: got=%+v", sum)
	}

	// An open attempt of the peer is reported as in progress without a verdict.
	if _, err := e.attempts.Start(ctx, peer, quizID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sum, _ = e.results.LearnerView(ctx, peer, quizID)
	if len(sum.Attempts) != 1 || sum.Attempts[0].IsCompleted || sum.Attempts[0].IsPassing != nil || sum.Attempts[0].IsLatest {
		t.Fatalf("in-progress attempt: got=%+v", sum.Attempts)
	}
}

func TestLearnerViewRequiresEnrollment(t *testing.T) {
	e := newEnv(t)
	quizID, _, _ := e.quiz(t, quizzes.CreateQuizInput{})
	_, err := e.results.LearnerView(context.Background(), models.Caller{UserID: 99, Role: models.RoleStudent}, quizID)
	if !apperr.IsKind(err, apperr.KindNotEnrolled) {
		t.Fatalf("got %v, want not_enrolled", err)
	}
}

func TestAuthorView(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	quizID, q1, q2 := e.quiz(t, quizzes.CreateQuizInput{MaxAttempts: quizzes.Null[int]()})

	e.take(t, student, quizID, map[int64]string{q1: "yes", q2: "false"})
	open, err := e.attempts.Start(ctx, peer, quizID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	report, err := e.results.AuthorView(ctx, tutor, quizID)
	if err != nil {
		t.Fatalf("AuthorView: %v", err)
	}
	if len(report.Attempts) != 2 {
		t.Fatalf("attempts: got %d", len(report.Attempts))
	}
	inProgress, done := report.Attempts[0], report.Attempts[1]
	if inProgress.ID != open.Attempt.ID || inProgress.IsCompleted || len(inProgress.Answers) != 0 || inProgress.Answers == nil {
		t.Fatalf("in-progress attempt first with empty answers: got=%+v", inProgress)
	}
	if done.StudentID != student.UserID || *done.Score != 50 || *done.IsPassing || len(done.Answers) != 2 {
		t.Fatalf("completed attempt: got=%+v", done)
	}
	for _, a := range done.Answers {
		if a.QuestionText == "" || a.CorrectAnswer == "" || a.IsCorrect == nil {
			t.Fatalf("answer detail incomplete: %+v", a)
		}
	}

	_, err = e.results.AuthorView(ctx, models.Caller{UserID: 11, Role: models.RoleTutor}, quizID)
	if !apperr.IsKind(err, apperr.KindNotAssigned) {
		t.Fatalf("unassigned tutor: got %v", err)
	}
	_, err = e.results.AuthorView(ctx, tutor, 777)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("missing quiz: got %v", err)
	}
}

func TestCourseOverview(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	active, q1, _ := e.quiz(t, quizzes.CreateQuizInput{Title: "Active"})
	e.quiz(t, quizzes.CreateQuizInput{Title: "Hidden", IsActive: new(bool)})
	e.take(t, student, active, map[int64]string{q1: "yes"})

	list, err := e.results.CourseOverview(ctx, student, courseID)
	if err != nil {
		t.Fatalf("CourseOverview: %v", err)
	}
	if len(list) != 1 || list[0].ID != active {
		t.Fatalf("only active quizzes are listed: got=%+v", list)
	}
	ov := list[0]
	if ov.QuestionCount != 2 || ov.TotalPoints != 2 || ov.AttemptsCount != 1 || ov.CompletedAttempts != 1 || ov.CanTake || *ov.LatestScore != 50 {
		t.Fatalf("overview: got=%+v", ov)
	}

	list, _ = e.results.CourseOverview(ctx, peer, courseID)
	if !list[0].CanTake || list[0].LatestScore != nil {
		t.Fatalf("peer overview: got=%+v", list[0])
	}

	_, err = e.results.CourseOverview(ctx, models.Caller{UserID: 99, Role: models.RoleStudent}, courseID)
	if !apperr.IsKind(err, apperr.KindNotEnrolled) {
		t.Fatalf("not enrolled: got %v", err)
	}
}
