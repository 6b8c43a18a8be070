package domain

import "time"

// UserRole is stored metadata; no endpoint enforces admin-only behavior.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}

// User is the domain model for account holders who own tasks.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPatch lists the profile fields a user may change. Nil means untouched.
type UserPatch struct {
	Name  *string
	Email *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil
}
