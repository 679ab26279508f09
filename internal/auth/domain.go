package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	DepartmentID *int64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
