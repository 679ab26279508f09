package departments

import (
	"time"

	"github.com/taskhub/taskhub/internal/authz"
)

// Department groups users and tasks under an optional manager.
type Department struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ManagerID   *int64    `json:"manager_id"`
	UserCount   int       `json:"users_count"`
	TaskCount   int       `json:"tasks_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Ref converts the department into the policy target view.
func (d Department) Ref() authz.DepartmentRef {
	return authz.DepartmentRef{ID: d.ID, ManagerID: d.ManagerID}
}

// Statistics summarizes a department's task load by status.
type Statistics struct {
	TotalTasks      int `json:"total_tasks"`
	PendingTasks    int `json:"pending_tasks"`
	InProgressTasks int `json:"in_progress_tasks"`
	CompletedTasks  int `json:"completed_tasks"`
	Members         int `json:"members"`
}

// ListFilters narrows department listings.
type ListFilters struct {
	Scope  authz.Scope
	Search string
}
