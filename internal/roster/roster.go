// Package roster answers the course membership questions the quiz core asks:
// is a tutor assigned to a course, is a student enrolled, does a module belong to a course.
package roster

import (
	"context"
	"sync"
)

// Provider is the identity/roster and catalog collaborator.
type Provider interface {
	IsCourseAuthor(ctx context.Context, userID, courseID int64) (bool, error)
	IsEnrolled(ctx context.Context, userID, courseID int64) (bool, error)
	ModuleInCourse(ctx context.Context, moduleID, courseID int64) (bool, error)
}

type pair struct{ a, b int64 }

// Static is an in-memory Provider. With Open set every check succeeds,
// which is how the memory driver runs without a roster database.
type Static struct {
	Open bool

	mu       sync.RWMutex
	authors  map[pair]bool
	students map[pair]bool
	modules  map[pair]bool
}

// NewStatic returns an empty closed roster.
func NewStatic() *Static {
	return &Static{
		authors:  make(map[pair]bool),
		students: make(map[pair]bool),
		modules:  make(map[pair]bool),
	}
}

// AssignTutor records tutorID as an author of courseID.
func (s *Static) AssignTutor(courseID, tutorID int64) *Static {
	s.mu.Lock()
	s.authors[pair{courseID, tutorID}] = true
	s.mu.Unlock()
	return s
}

// Enroll records studentID as enrolled in courseID.
func (s *Static) Enroll(courseID, studentID int64) *Static {
	s.mu.Lock()
	s.students[pair{courseID, studentID}] = true
	s.mu.Unlock()
	return s
}

// Unenroll removes an enrollment.
func (s *Static) Unenroll(courseID, studentID int64) *Static {
	s.mu.Lock()
	delete(s.students, pair{courseID, studentID})
	s.mu.Unlock()
	return s
}

// AddModule records moduleID as part of courseID.
func (s *Static) AddModule(courseID, moduleID int64) *Static {
	s.mu.Lock()
	s.modules[pair{courseID, moduleID}] = true
	s.mu.Unlock()
	return s
}

func (s *Static) IsCourseAuthor(_ context.Context, userID, courseID int64) (bool, error) {
	return s.has(s.authors, pair{courseID, userID}), nil
}

func (s *Static) IsEnrolled(_ context.Context, userID, courseID int64) (bool, error) {
	return s.has(s.students, pair{courseID, userID}), nil
}

func (s *Static) ModuleInCourse(_ context.Context, moduleID, courseID int64) (bool, error) {
	return s.has(s.modules, pair{courseID, moduleID}), nil
}

func (s *Static) has(m map[pair]bool, k pair) bool {
	if s.Open {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return m[k]
}
