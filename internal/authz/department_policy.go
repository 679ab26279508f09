package authz

import "github.com/taskhub/taskhub/internal/shared"

// DepartmentPolicy governs actions on departments. The zero-member
// precondition on delete is a business rule enforced by the department
// service, not an authorization concern.
type DepartmentPolicy struct{}

// Authorize implements Policy.
func (DepartmentPolicy) Authorize(p *Principal, action Action, target any) Decision {
	switch action {
	case ActionViewAny:
		if p.HasPermission(shared.PermDepartmentsView) {
			return allow(ReasonGranted)
		}
		return denyPermission(shared.PermDepartmentsView)

	case ActionCreate:
		if p.HasPermission(shared.PermDepartmentsCreate) {
			return allow(ReasonGranted)
		}
		return denyPermission(shared.PermDepartmentsCreate)

	case ActionView:
		dept, ok := target.(DepartmentRef)
		if !ok {
			return denyScope("department target required")
		}
		// Members view their own department, manager or staff alike.
		if p.InDepartment(dept.ID) {
			return allow(ReasonGranted)
		}
		return denyScope("not a member of this department")

	case ActionUpdate:
		dept, ok := target.(DepartmentRef)
		if !ok {
			return denyScope("department target required")
		}
		if p.IsManagerOf(dept.ID) {
			return allow(ReasonGranted)
		}
		return denyScope("not the manager of this department")

	case ActionDelete:
		if p.HasPermission(shared.PermDepartmentsDelete) {
			return allow(ReasonGranted)
		}
		return denyPermission(shared.PermDepartmentsDelete)

	case ActionAssignManager:
		if p.HasRole(shared.RoleAdmin) {
			return allow(ReasonGranted)
		}
		return denyRole(shared.RoleAdmin)
	}

	return denyScope("unsupported action " + string(action))
}
