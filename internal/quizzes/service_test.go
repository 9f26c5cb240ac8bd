package quizzes_test

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/aura-learn/quiz-backend/internal/apperr"
	"github.com/aura-learn/quiz-backend/internal/memstore"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
	"github.com/aura-learn/quiz-backend/internal/roster"
)

const (
	courseID = 1
	moduleID = 11
)

var (
	tutor    = models.Caller{UserID: 100, Role: models.RoleTutor}
	stranger = models.Caller{UserID: 101, Role: models.RoleTutor}
)

func ptr[T any](v T) *T { return &v }

func newService() (*quizzes.Service, *memstore.Store) {
	store := memstore.New()
	rp := roster.NewStatic().AssignTutor(courseID, tutor.UserID).AddModule(courseID, moduleID)
	return quizzes.NewService(store, rp, zap.NewNop()), store
}

func createQuiz(t *testing.T, svc *quizzes.Service) *models.Quiz {
	t.Helper()
	q, err := svc.CreateQuiz(context.Background(), tutor, quizzes.CreateQuizInput{CourseID: courseID, Title: "Week 1"})
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	return q
}

func mcInput() quizzes.QuestionInput {
	return quizzes.QuestionInput{
		Type:   "multiple_choice",
		Text:   "What is 2+2?",
		Points: ptr(2.0),
		Options: []quizzes.OptionInput{
			{Text: "3"},
			{Text: "4", IsCorrect: true},
		},
	}
}

func TestCreateQuizDefaults(t *testing.T) {
	svc, _ := newService()
	q := createQuiz(t, svc)
	if q.PassingScore != 60 || !q.IsActive || q.MaxAttempts == nil || *q.MaxAttempts != 1 {
		t.Fatalf("defaults: got=%+v", q)
	}
	if q.CreatedBy == nil || *q.CreatedBy != tutor.UserID {
		t.Fatalf("created_by: got=%v", q.CreatedBy)
	}
}

func TestCreateQuizUnlimitedAttempts(t *testing.T) {
	svc, _ := newService()
	var in quizzes.CreateQuizInput
	if err := json.Unmarshal([]byte(`{"course_id":1,"title":"Open book","max_attempts":null}`), &in); err != nil {
		t.Fatalf("decode: %v", err)
	}
	q, err := svc.CreateQuiz(context.Background(), tutor, in)
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	if q.MaxAttempts != nil {
		t.Fatalf("explicit null should mean unlimited, got %d", *q.MaxAttempts)
	}
}

func TestCreateQuizErrors(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	cases := []struct {
		name   string
		caller models.Caller
		in     quizzes.CreateQuizInput
		kind   apperr.Kind
	}{
		{"blank title", tutor, quizzes.CreateQuizInput{CourseID: courseID, Title: "   "}, apperr.KindValidation},
		{"not assigned", stranger, quizzes.CreateQuizInput{CourseID: courseID, Title: "x"}, apperr.KindNotAssigned},
		{"module of other course", tutor, quizzes.CreateQuizInput{CourseID: courseID, Title: "x", ModuleID: ptr(int64(99))}, apperr.KindInvalidReference},
		{"passing score out of range", tutor, quizzes.CreateQuizInput{CourseID: courseID, Title: "x", PassingScore: ptr(101.0)}, apperr.KindValidation},
		{"zero attempts", tutor, quizzes.CreateQuizInput{CourseID: courseID, Title: "x", MaxAttempts: quizzes.Value(0)}, apperr.KindValidation},
		{"negative time limit", tutor, quizzes.CreateQuizInput{CourseID: courseID, Title: "x", TimeLimitMinutes: ptr(-5)}, apperr.KindValidation},
		{"student caller", models.Caller{UserID: 5, Role: models.RoleStudent}, quizzes.CreateQuizInput{CourseID: courseID, Title: "x"}, apperr.KindForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateQuiz(ctx, tc.caller, tc.in)
			if !apperr.IsKind(err, tc.kind) {
				t.Fatalf("got %v (kind %s), want kind %s", err, apperr.KindOf(err), tc.kind)
			}
		})
	}
}

func TestCreateQuizWithModule(t *testing.T) {
	svc, _ := newService()
	q, err := svc.CreateQuiz(context.Background(), tutor, quizzes.CreateQuizInput{CourseID: courseID, Title: "m", ModuleID: ptr(int64(moduleID))})
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	if q.ModuleID == nil || *q.ModuleID != moduleID {
		t.Fatalf("module_id: got=%v", q.ModuleID)
	}
}

func TestUpdateQuizPartial(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	q := createQuiz(t, svc)

	var in quizzes.UpdateQuizInput
	if err := json.Unmarshal([]byte(`{"max_attempts":3,"description":"  read chapter 1  "}`), &in); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := svc.UpdateQuiz(ctx, tutor, q.ID, in)
	if err != nil {
		t.Fatalf("UpdateQuiz: %v", err)
	}
	if got.Title != "Week 1" || *got.MaxAttempts != 3 || *got.Description != "read chapter 1" {
		t.Fatalf("update: got=%+v", got)
	}

	if _, err := svc.UpdateQuiz(ctx, tutor, q.ID, quizzes.UpdateQuizInput{Title: quizzes.Value(" ")}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("blank title on update: got %v", err)
	}
	got, err = svc.UpdateQuiz(ctx, tutor, q.ID, quizzes.UpdateQuizInput{MaxAttempts: quizzes.Null[int](), Description: quizzes.Null[string]()})
	if err != nil {
		t.Fatalf("UpdateQuiz: %v", err)
	}
	if got.MaxAttempts != nil || got.Description != nil {
		t.Fatalf("null should clear: got=%+v", got)
	}
}

func TestUpdateQuizRejectsForeignModule(t *testing.T) {
	svc, _ := newService()
	q := createQuiz(t, svc)
	_, err := svc.UpdateQuiz(context.Background(), tutor, q.ID, quizzes.UpdateQuizInput{ModuleID: quizzes.Value(int64(42))})
	if !apperr.IsKind(err, apperr.KindInvalidReference) {
		t.Fatalf("got %v, want invalid_reference", err)
	}
}

func TestAddQuestionMultipleChoice(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	q := createQuiz(t, svc)

	v, err := svc.AddQuestion(ctx, tutor, q.ID, mcInput())
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if v.Type != models.TypeMultipleChoice || len(v.Options) != 2 || v.CorrectAnswer != "4" {
		t.Fatalf("question: got=%+v", v)
	}
	if v.Options[0].OrderIndex != 0 || v.Options[1].OrderIndex != 1 {
		t.Fatalf("option order should default to position: %+v", v.Options)
	}

	d, err := svc.GetQuiz(ctx, tutor, q.ID)
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if d.QuestionCount != 1 || d.TotalPoints != 2 {
		t.Fatalf("totals: got count=%d points=%v", d.QuestionCount, d.TotalPoints)
	}
}

func TestAddQuestionValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	q := createQuiz(t, svc)

	twoCorrect := mcInput()
	twoCorrect.Options[0].IsCorrect = true
	oneOption := mcInput()
	oneOption.Options = oneOption.Options[1:]

	cases := []struct {
		name string
		in   quizzes.QuestionInput
	}{
		{"unknown type", quizzes.QuestionInput{Type: "essay", Text: "x"}},
		{"blank text", quizzes.QuestionInput{Type: "short_answer", Text: " ", CorrectAnswer: ptr("a")}},
		{"zero points", quizzes.QuestionInput{Type: "short_answer", Text: "x", Points: ptr(0.0), CorrectAnswer: ptr("a")}},
		{"negative points", quizzes.QuestionInput{Type: "short_answer", Text: "x", Points: ptr(-1.0), CorrectAnswer: ptr("a")}},
		{"two correct options", twoCorrect},
		{"one option", oneOption},
		{"short answer without key", quizzes.QuestionInput{Type: "short_answer", Text: "x"}},
		{"true false bad key", quizzes.QuestionInput{Type: "true_false", Text: "x", CorrectAnswer: ptr("yes")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddQuestion(ctx, tutor, q.ID, tc.in); !apperr.IsKind(err, apperr.KindValidation) {
				t.Fatalf("got %v, want validation_error", err)
			}
		})
	}

	d, _ := svc.GetQuiz(ctx, tutor, q.ID)
	if d.QuestionCount != 0 {
		t.Fatalf("rejected questions must not be stored, got %d", d.QuestionCount)
	}
}

func TestAddQuestionNormalizesTrueFalse(t *testing.T) {
	svc, _ := newService()
	q := createQuiz(t, svc)
	v, err := svc.AddQuestion(context.Background(), tutor, q.ID, quizzes.QuestionInput{Type: "true_false", Text: "Go has generics.", CorrectAnswer: ptr(" TRUE ")})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if v.CorrectAnswer != "true" || v.Points != 1 {
		t.Fatalf("question: got=%+v", v)
	}
}

func TestUpdateQuestionReplacesOptions(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	q := createQuiz(t, svc)
	v, _ := svc.AddQuestion(ctx, tutor, q.ID, mcInput())

	bad := []quizzes.OptionInput{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}}
	if _, err := svc.UpdateQuestion(ctx, tutor, v.ID, quizzes.UpdateQuestionInput{Options: &bad}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("two correct options: got %v", err)
	}
	got, _ := svc.GetQuestion(ctx, tutor, v.ID)
	if got.CorrectAnswer != "4" {
		t.Fatalf("rejected replace must leave options untouched, got %+v", got.Options)
	}

	good := []quizzes.OptionInput{{Text: "four", IsCorrect: true}, {Text: "five"}, {Text: "six"}}
	got, err := svc.UpdateQuestion(ctx, tutor, v.ID, quizzes.UpdateQuestionInput{Options: &good, Points: ptr(3.0)})
	if err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	correct := 0
	for _, o := range got.Options {
		if o.IsCorrect {
			correct++
		}
	}
	if len(got.Options) != 3 || correct != 1 || got.Points != 3 {
		t.Fatalf("replace: got=%+v", got)
	}
}

func TestUpdateQuestionTypeIsImmutable(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	q := createQuiz(t, svc)
	v, _ := svc.AddQuestion(ctx, tutor, q.ID, mcInput())
	if _, err := svc.UpdateQuestion(ctx, tutor, v.ID, quizzes.UpdateQuestionInput{Type: ptr("short_answer")}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("type change: got %v", err)
	}
}

func TestUpdateShortAnswerKey(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	q := createQuiz(t, svc)
	v, _ := svc.AddQuestion(ctx, tutor, q.ID, quizzes.QuestionInput{Type: "short_answer", Text: "Capital of France?", CorrectAnswer: ptr("Paris")})

	got, err := svc.UpdateQuestion(ctx, tutor, v.ID, quizzes.UpdateQuestionInput{CorrectAnswer: ptr("Lyon")})
	if err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	if got.CorrectAnswer != "Lyon" {
		t.Fatalf("correct answer: got=%q", got.CorrectAnswer)
	}
	stored, _ := svc.GetQuestion(ctx, tutor, v.ID)
	if stored.CorrectAnswer != "Lyon" {
		t.Fatalf("stored correct answer: got=%q", stored.CorrectAnswer)
	}
	if _, err := svc.UpdateQuestion(ctx, tutor, v.ID, quizzes.UpdateQuestionInput{CorrectAnswer: ptr(" ")}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("blank key: got %v", err)
	}
}

func TestDeleteQuestionAndQuiz(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	q := createQuiz(t, svc)
	v, _ := svc.AddQuestion(ctx, tutor, q.ID, mcInput())

	if err := svc.DeleteQuestion(ctx, stranger, v.ID); !apperr.IsKind(err, apperr.KindNotAssigned) {
		t.Fatalf("stranger delete: got %v", err)
	}
	if err := svc.DeleteQuestion(ctx, tutor, v.ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if _, err := svc.GetQuestion(ctx, tutor, v.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("deleted question: got %v", err)
	}
	if err := svc.DeleteQuiz(ctx, tutor, q.ID); err != nil {
		t.Fatalf("DeleteQuiz: %v", err)
	}
	if _, err := svc.GetQuiz(ctx, tutor, q.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("deleted quiz: got %v", err)
	}
}

func TestListCourseQuizzes(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	first := createQuiz(t, svc)
	second, _ := svc.CreateQuiz(ctx, tutor, quizzes.CreateQuizInput{CourseID: courseID, Title: "Intro", OrderIndex: -1, IsActive: ptr(false)})
	_, _ = svc.AddQuestion(ctx, tutor, first.ID, mcInput())

	list, err := svc.ListCourseQuizzes(ctx, tutor, courseID)
	if err != nil {
		t.Fatalf("ListCourseQuizzes: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].QuestionCount != 1 {
		t.Fatalf("list: got=%+v", list)
	}
	if _, err := svc.ListCourseQuizzes(ctx, stranger, courseID); !apperr.IsKind(err, apperr.KindNotAssigned) {
		t.Fatalf("stranger list: got %v", err)
	}
}

func TestQuestionsForAttemptHidesKeys(t *testing.T) {
	q := models.Question{ID: 1, Text: "x", Points: 1, Body: models.MultipleChoice{Options: []models.Option{
		{ID: 1, Text: "a", IsCorrect: true}, {ID: 2, Text: "b"},
	}}}
	b, err := json.Marshal(quizzes.QuestionsForAttempt([]models.Question{q}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out []map[string]any
	_ = json.Unmarshal(b, &out)
	if _, ok := out[0]["correct_answer"]; ok {
		t.Fatalf("learner question must not carry correct_answer: %s", b)
	}
	for _, o := range out[0]["options"].([]any) {
		if _, ok := o.(map[string]any)["is_correct"]; ok {
			t.Fatalf("learner option must not carry is_correct: %s", b)
		}
	}
}
