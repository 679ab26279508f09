package authz

import "github.com/taskhub/taskhub/internal/shared"

// Scope is a query constraint, not an allow/deny decision: repositories
// apply it before any caller-supplied filter when listing resources.
type Scope struct {
	// All means no restriction.
	All bool
	// DepartmentID restricts rows to one department when set.
	DepartmentID *int64
	// AssignedTo restricts rows to one assignee when set.
	AssignedTo *int64
}

// Unrestricted is the admin scope.
func Unrestricted() Scope {
	return Scope{All: true}
}

// ScopeFor returns the listing restriction for a principal and resource.
//
//	Users:       admin → all; manager → own department; staff never gets
//	             here (viewAny already denied).
//	Tasks:       admin → all; manager → own department; staff → own
//	             assignments only.
//	Departments: admin and staff → all (staff breadth is deliberate, the
//	             model defines no narrowing for them); manager → own
//	             department.
func ScopeFor(p *Principal, resource Resource) Scope {
	if p == nil {
		return Scope{}
	}
	if p.HasRole(shared.RoleAdmin) {
		return Unrestricted()
	}

	switch resource {
	case ResourceUser:
		// Staff never reach here: the viewAny gate already denied them.
		return Scope{DepartmentID: p.DepartmentID}

	case ResourceTask:
		if p.HasRole(shared.RoleManager) {
			return Scope{DepartmentID: p.DepartmentID}
		}
		uid := p.UserID
		return Scope{AssignedTo: &uid}

	case ResourceDepartment:
		if p.HasRole(shared.RoleManager) {
			return Scope{DepartmentID: p.DepartmentID}
		}
		return Unrestricted()
	}

	return Scope{}
}

// AllowsExplicitFilters reports whether caller-supplied department or
// assignee query filters are honored. Anyone without cross-department
// visibility has them silently ignored rather than rejected.
func AllowsExplicitFilters(p *Principal) bool {
	return p.HasAnyRole(shared.RoleAdmin, shared.RoleManager)
}
