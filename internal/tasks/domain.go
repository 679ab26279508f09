package tasks

import (
	"time"

	"github.com/taskhub/taskhub/internal/authz"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a unit of work assigned within a department.
type Task struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	DepartmentID int64      `json:"department_id"`
	AssignedTo   int64      `json:"assigned_to"`
	AssignedBy   int64      `json:"assigned_by"`
	DueDate      *time.Time `json:"due_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Ref converts the task into the policy target view.
func (t Task) Ref() authz.TaskRef {
	return authz.TaskRef{
		ID:           t.ID,
		DepartmentID: t.DepartmentID,
		AssignedTo:   t.AssignedTo,
		AssignedBy:   t.AssignedBy,
	}
}

// IsCompleted reports whether the task has reached its terminal state.
func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// ListFilters narrows task listings. Scope is applied before the
// caller-supplied filters.
type ListFilters struct {
	Scope        authz.Scope
	Status       Status
	DepartmentID *int64
	AssignedTo   *int64
	Page         int
	PerPage      int
}

// Statistics summarizes the tasks visible to a principal.
type Statistics struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Overdue    int `json:"overdue"`
}
