package authz

import "github.com/taskhub/taskhub/internal/shared"

// TaskPolicy governs actions on tasks. Update authorizes touching the
// resource at all; narrowing a staff assignee's patch to the status field
// is the caller's field-selection concern and stays out of the policy.
type TaskPolicy struct{}

// Authorize implements Policy.
func (TaskPolicy) Authorize(p *Principal, action Action, target any) Decision {
	switch action {
	case ActionViewAny:
		if p.HasPermission(shared.PermTasksView) {
			return allow(ReasonGranted)
		}
		return denyPermission(shared.PermTasksView)

	case ActionCreate:
		if p.HasPermission(shared.PermTasksCreate) {
			return allow(ReasonGranted)
		}
		return denyPermission(shared.PermTasksCreate)

	case ActionView, ActionComplete:
		task, ok := target.(TaskRef)
		if !ok {
			return denyScope("task target required")
		}
		if p.IsManagerOf(task.DepartmentID) {
			return allow(ReasonGranted)
		}
		if task.AssignedTo == p.UserID {
			return allow(ReasonGranted)
		}
		return denyScope("task is outside caller's department and not assigned to caller")

	case ActionUpdate:
		task, ok := target.(TaskRef)
		if !ok {
			return denyScope("task target required")
		}
		if p.IsManagerOf(task.DepartmentID) {
			return allow(ReasonGranted)
		}
		if task.AssignedTo == p.UserID {
			return allow(ReasonGranted)
		}
		return denyScope("task is outside caller's department and not assigned to caller")

	case ActionDelete:
		task, ok := target.(TaskRef)
		if !ok {
			return denyScope("task target required")
		}
		// Managers delete tasks they assigned within their own department.
		if p.HasRole(shared.RoleManager) && task.AssignedBy == p.UserID && p.InDepartment(task.DepartmentID) {
			return allow(ReasonGranted)
		}
		if !p.HasPermission(shared.PermTasksDelete) {
			return denyPermission(shared.PermTasksDelete)
		}
		return denyScope("managers delete only tasks they assigned in their department")

	case ActionAssign:
		if p.HasPermission(shared.PermTasksAssign) {
			return allow(ReasonGranted)
		}
		return denyPermission(shared.PermTasksAssign)

	case ActionReassign:
		task, ok := target.(TaskRef)
		if !ok {
			return denyScope("task target required")
		}
		if p.IsManagerOf(task.DepartmentID) {
			return allow(ReasonGranted)
		}
		if !p.HasRole(shared.RoleManager) {
			return denyRole(shared.RoleManager)
		}
		return denyScope("task is outside caller's department")
	}

	return denyScope("unsupported action " + string(action))
}
