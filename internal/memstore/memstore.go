// Package memstore is an in-memory implementation of the quiz, attempt and result stores.
// It backs DATABASE_DRIVER=memory and the service tests. Transactions are serialised by a
// single mutex and rolled back by restoring a snapshot.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aura-learn/quiz-backend/internal/apperr"
	"github.com/aura-learn/quiz-backend/internal/attempts"
	"github.com/aura-learn/quiz-backend/internal/models"
)

type answerKey struct{ attemptID, questionID int64 }

type state struct {
	quizzes   map[int64]models.Quiz
	questions map[int64]models.Question
	attempts  map[int64]models.Attempt
	answers   map[int64]models.Answer
	byKey     map[answerKey]int64

	quizSeq, questionSeq, optionSeq, attemptSeq, answerSeq int64
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: state{
			quizzes:   make(map[int64]models.Quiz),
			questions: make(map[int64]models.Question),
			attempts:  make(map[int64]models.Attempt),
			answers:   make(map[int64]models.Answer),
			byKey:     make(map[answerKey]int64),
		},
		now: time.Now,
	}
}

// SetClock replaces the clock used for created_at columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// WithinTx runs fn with the store locked. If fn fails every change it made is discarded.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx attempts.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.st.clone()
	if err := fn(ctx, &tx{s: s}); err != nil {
		s.st = snap
		return err
	}
	return nil
}

// --- quizzes ---

func (s *Store) CreateQuiz(_ context.Context, q *models.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.quizSeq++
	q.ID = s.st.quizSeq
	q.CreatedAt = s.now().UTC()
	s.st.quizzes[q.ID] = *q
	return nil
}

func (s *Store) GetQuiz(_ context.Context, id int64) (*models.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.quiz(id)
}

func (s *Store) UpdateQuiz(_ context.Context, q *models.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.st.quizzes[q.ID]
	if !ok {
		return apperr.NotFound("quiz")
	}
	q.CreatedAt, q.CreatedBy, q.CourseID = prev.CreatedAt, prev.CreatedBy, prev.CourseID
	s.st.quizzes[q.ID] = *q
	return nil
}

// DeleteQuiz cascades to questions, options, attempts and answers.
func (s *Store) DeleteQuiz(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.quizzes[id]; !ok {
		return apperr.NotFound("quiz")
	}
	delete(s.st.quizzes, id)
	for qid, q := range s.st.questions {
		if q.QuizID == id {
			s.st.deleteQuestion(qid)
		}
	}
	for aid, a := range s.st.attempts {
		if a.QuizID == id {
			delete(s.st.attempts, aid)
			s.st.deleteAnswers(func(ans models.Answer) bool { return ans.AttemptID == aid })
		}
	}
	return nil
}

func (s *Store) ListQuizzes(_ context.Context, courseID int64, activeOnly bool) ([]models.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Quiz
	for _, q := range s.st.quizzes {
		if q.CourseID == courseID && (q.IsActive || !activeOnly) {
			list = append(list, q)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return list, nil
}

func (s *Store) CreateQuestion(_ context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.quizzes[q.QuizID]; !ok {
		return fmt.Errorf("insert question: quiz %d does not exist", q.QuizID)
	}
	s.st.questionSeq++
	q.ID = s.st.questionSeq
	q.CreatedAt = s.now().UTC()
	s.st.assignOptionIDs(q)
	s.st.questions[q.ID] = cloneQuestion(*q)
	return nil
}

func (s *Store) GetQuestion(_ context.Context, id int64) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.question(id)
}

func (s *Store) UpdateQuestion(_ context.Context, q *models.Question, replaceOptions bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.st.questions[q.ID]
	if !ok {
		return apperr.NotFound("question")
	}
	q.QuizID, q.CreatedAt = prev.QuizID, prev.CreatedAt
	if replaceOptions {
		s.st.assignOptionIDs(q)
		// option_id ON DELETE SET NULL
		for id, a := range s.st.answers {
			if a.QuestionID == q.ID && a.OptionID != nil {
				a.OptionID = nil
				s.st.answers[id] = a
			}
		}
	} else if _, mc := prev.Body.(models.MultipleChoice); mc {
		q.Body = prev.Body
	}
	s.st.questions[q.ID] = cloneQuestion(*q)
	return nil
}

func (s *Store) DeleteQuestion(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.questions[id]; !ok {
		return apperr.NotFound("question")
	}
	s.st.deleteQuestion(id)
	return nil
}

func (s *Store) ListQuestions(_ context.Context, quizID int64) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listQuestions(quizID), nil
}

// --- attempts and results ---

func (s *Store) GetAttempt(_ context.Context, id int64) (*models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.attempt(id)
}

func (s *Store) ListAnswers(_ context.Context, attemptID int64) ([]models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listAnswers(func(a models.Answer) bool { return a.AttemptID == attemptID }), nil
}

func (s *Store) ListAttempts(_ context.Context, quizID, studentID int64) ([]models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Attempt
	for _, a := range s.st.attempts {
		if a.QuizID == quizID && (studentID == 0 || a.StudentID == studentID) {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *Store) ListQuizAnswers(_ context.Context, quizID int64) ([]models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listAnswers(func(a models.Answer) bool {
		att, ok := s.st.attempts[a.AttemptID]
		return ok && att.QuizID == quizID
	}), nil
}

// tx runs with Store.mu already held.
type tx struct {
	s *Store
}

// LockStudentQuiz is a no-op: the whole transaction already holds the store lock.
func (t *tx) LockStudentQuiz(context.Context, int64, int64) error { return nil }

func (t *tx) GetQuiz(_ context.Context, id int64) (*models.Quiz, error) {
	return t.s.st.quiz(id)
}

func (t *tx) OpenAttempt(_ context.Context, quizID, studentID int64) (*models.Attempt, error) {
	for _, a := range t.s.st.attempts {
		if a.QuizID == quizID && a.StudentID == studentID && !a.IsCompleted {
			return &a, nil
		}
	}
	return nil, nil
}

func (t *tx) CountCompleted(_ context.Context, quizID, studentID int64) (int, error) {
	n := 0
	for _, a := range t.s.st.attempts {
		if a.QuizID == quizID && a.StudentID == studentID && a.IsCompleted {
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateAttempt(ctx context.Context, a *models.Attempt) error {
	if _, ok := t.s.st.quizzes[a.QuizID]; !ok {
		return fmt.Errorf("insert attempt: quiz %d does not exist", a.QuizID)
	}
	if open, _ := t.OpenAttempt(ctx, a.QuizID, a.StudentID); open != nil {
		return fmt.Errorf("insert attempt: open attempt %d already exists for quiz %d student %d", open.ID, a.QuizID, a.StudentID)
	}
	t.s.st.attemptSeq++
	a.ID = t.s.st.attemptSeq
	t.s.st.attempts[a.ID] = *a
	return nil
}

func (t *tx) LockAttempt(_ context.Context, id int64) (*models.Attempt, error) {
	return t.s.st.attempt(id)
}

func (t *tx) GetQuestion(_ context.Context, id int64) (*models.Question, error) {
	return t.s.st.question(id)
}

func (t *tx) UpsertAnswer(_ context.Context, a *models.Answer) error {
	st := &t.s.st
	if _, ok := st.attempts[a.AttemptID]; !ok {
		return fmt.Errorf("upsert answer: attempt %d does not exist", a.AttemptID)
	}
	k := answerKey{a.AttemptID, a.QuestionID}
	if id, ok := st.byKey[k]; ok {
		a.ID = id
	} else {
		st.answerSeq++
		a.ID = st.answerSeq
		st.byKey[k] = a.ID
	}
	a.IsCorrect, a.PointsEarned = nil, nil
	st.answers[a.ID] = *a
	return nil
}

func (t *tx) ListQuestions(_ context.Context, quizID int64) ([]models.Question, error) {
	return t.s.st.listQuestions(quizID), nil
}

func (t *tx) ListAnswers(_ context.Context, attemptID int64) ([]models.Answer, error) {
	return t.s.st.listAnswers(func(a models.Answer) bool { return a.AttemptID == attemptID }), nil
}

func (t *tx) SaveGradedAnswers(_ context.Context, answers []models.Answer) error {
	for _, a := range answers {
		cur, ok := t.s.st.answers[a.ID]
		if !ok {
			return fmt.Errorf("grade answer: answer %d does not exist", a.ID)
		}
		cur.IsCorrect, cur.PointsEarned = a.IsCorrect, a.PointsEarned
		t.s.st.answers[a.ID] = cur
	}
	return nil
}

func (t *tx) CompleteAttempt(_ context.Context, a *models.Attempt) error {
	cur, ok := t.s.st.attempts[a.ID]
	if !ok {
		return apperr.NotFound("attempt")
	}
	if cur.IsCompleted {
		return apperr.New(apperr.KindAttemptCompleted, "this quiz attempt is already completed")
	}
	cur.SubmittedAt, cur.IsCompleted = a.SubmittedAt, true
	cur.Score, cur.TotalPoints, cur.MaxPoints = a.Score, a.TotalPoints, a.MaxPoints
	t.s.st.attempts[a.ID] = cur
	return nil
}

// --- state helpers, called with the lock held ---

func (st *state) quiz(id int64) (*models.Quiz, error) {
	q, ok := st.quizzes[id]
	if !ok {
		return nil, apperr.NotFound("quiz")
	}
	return &q, nil
}

func (st *state) question(id int64) (*models.Question, error) {
	q, ok := st.questions[id]
	if !ok {
		return nil, apperr.NotFound("question")
	}
	q = cloneQuestion(q)
	return &q, nil
}

func (st *state) attempt(id int64) (*models.Attempt, error) {
	a, ok := st.attempts[id]
	if !ok {
		return nil, apperr.NotFound("attempt")
	}
	return &a, nil
}

func (st *state) listQuestions(quizID int64) []models.Question {
	var list []models.Question
	for _, q := range st.questions {
		if q.QuizID == quizID {
			list = append(list, cloneQuestion(q))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].OrderIndex != list[j].OrderIndex {
			return list[i].OrderIndex < list[j].OrderIndex
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (st *state) listAnswers(match func(models.Answer) bool) []models.Answer {
	var list []models.Answer
	for _, a := range st.answers {
		if match(a) {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.AttemptID != b.AttemptID {
			return a.AttemptID < b.AttemptID
		}
		if a.QuestionID != b.QuestionID {
			return a.QuestionID < b.QuestionID
		}
		return a.ID < b.ID
	})
	return list
}

func (st *state) deleteQuestion(id int64) {
	delete(st.questions, id)
	st.deleteAnswers(func(a models.Answer) bool { return a.QuestionID == id })
}

func (st *state) deleteAnswers(match func(models.Answer) bool) {
	for id, a := range st.answers {
		if match(a) {
			delete(st.answers, id)
			delete(st.byKey, answerKey{a.AttemptID, a.QuestionID})
		}
	}
}

func (st *state) assignOptionIDs(q *models.Question) {
	mc, ok := q.Body.(models.MultipleChoice)
	if !ok {
		return
	}
	opts := make([]models.Option, len(mc.Options))
	for i, o := range mc.Options {
		st.optionSeq++
		o.ID = st.optionSeq
		o.QuestionID = q.ID
		opts[i] = o
	}
	q.Body = models.MultipleChoice{Options: opts}
}

func (st *state) clone() state {
	c := state{
		quizzes:     make(map[int64]models.Quiz, len(st.quizzes)),
		questions:   make(map[int64]models.Question, len(st.questions)),
		attempts:    make(map[int64]models.Attempt, len(st.attempts)),
		answers:     make(map[int64]models.Answer, len(st.answers)),
		byKey:       make(map[answerKey]int64, len(st.byKey)),
		quizSeq:     st.quizSeq,
		questionSeq: st.questionSeq,
		optionSeq:   st.optionSeq,
		attemptSeq:  st.attemptSeq,
		answerSeq:   st.answerSeq,
	}
	for k, v := range st.quizzes {
		c.quizzes[k] = v
	}
	for k, v := range st.questions {
		c.questions[k] = cloneQuestion(v)
	}
	for k, v := range st.attempts {
		c.attempts[k] = v
	}
	for k, v := range st.answers {
		c.answers[k] = v
	}
	for k, v := range st.byKey {
		c.byKey[k] = v
	}
	return c
}

func cloneQuestion(q models.Question) models.Question {
	if mc, ok := q.Body.(models.MultipleChoice); ok {
		q.Body = models.MultipleChoice{Options: append([]models.Option(nil), mc.Options...)}
	}
	return q
}
