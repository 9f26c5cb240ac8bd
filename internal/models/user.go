package models

// Role is the caller role carried in the access token.
type Role string

const (
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
)

// Caller identifies the authenticated user performing an operation.
type Caller struct {
	UserID int64
	Role   Role
}

// IsTutor reports whether the caller authors courses.
func (c Caller) IsTutor() bool { return c.Role == RoleTutor }
