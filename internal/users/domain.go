package users

import (
	"time"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/rbac"
)

// User represents a managed user account.
type User struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	DepartmentID *int64      `json:"department_id"`
	IsActive     bool        `json:"is_active"`
	Roles        []rbac.Role `json:"roles,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Ref converts the user into the policy target view.
func (u User) Ref() authz.UserRef {
	slugs := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		slugs = append(slugs, role.Slug)
	}
	return authz.UserRef{ID: u.ID, DepartmentID: u.DepartmentID, RoleSlugs: slugs}
}

// ListFilters narrows user listings. Scope is applied before everything
// else; the explicit department filter is honored only for callers with
// cross-department visibility.
type ListFilters struct {
	Scope        authz.Scope
	Search       string
	DepartmentID *int64
	RoleSlug     string
	Page         int
	PerPage      int
}
