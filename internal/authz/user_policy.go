package authz

import "github.com/taskhub/taskhub/internal/shared"

// UserPolicy governs actions on user accounts.
//
// The delete rule is the one place the admin bypass does not reach:
// nobody deletes their own account, whatever roles they hold.
type UserPolicy struct{}

// Authorize implements Policy.
func (UserPolicy) Authorize(p *Principal, action Action, target any) Decision {
	switch action {
	case ActionViewAny:
		if p.HasPermission(shared.PermUsersView) {
			return allow(ReasonGranted)
		}
		return denyPermission(shared.PermUsersView)

	case ActionCreate:
		if p.HasPermission(shared.PermUsersCreate) {
			return allow(ReasonGranted)
		}
		return denyPermission(shared.PermUsersCreate)

	case ActionView:
		user, ok := target.(UserRef)
		if !ok {
			return denyScope("user target required")
		}
		if p.UserID == user.ID {
			return allow(ReasonGranted)
		}
		if p.HasRole(shared.RoleManager) && user.sameDepartment(p) {
			return allow(ReasonGranted)
		}
		return denyScope("outside caller's department")

	case ActionUpdate:
		user, ok := target.(UserRef)
		if !ok {
			return denyScope("user target required")
		}
		if p.UserID == user.ID {
			return allow(ReasonGranted)
		}
		// Managers update staff in their own department, never peers or admins.
		if p.HasRole(shared.RoleManager) && user.sameDepartment(p) &&
			!user.hasAnyRole(shared.RoleAdmin, shared.RoleManager) {
			return allow(ReasonGranted)
		}
		return denyScope("outside caller's department or protected target")

	case ActionDelete:
		user, ok := target.(UserRef)
		if !ok {
			return denyScope("user target required")
		}
		if p.UserID == user.ID {
			return Decision{Reason: ReasonSelfActionDenied, Detail: "cannot delete own account"}
		}
		if p.HasPermission(shared.PermUsersDelete) {
			return allow(ReasonGranted)
		}
		return denyPermission(shared.PermUsersDelete)

	case ActionAssignRoles:
		user, ok := target.(UserRef)
		if !ok {
			return denyScope("user target required")
		}
		if p.UserID == user.ID {
			return Decision{Reason: ReasonSelfActionDenied, Detail: "cannot reassign own roles"}
		}
		if p.HasRole(shared.RoleAdmin) {
			return allow(ReasonGranted)
		}
		return denyRole(shared.RoleAdmin)
	}

	return denyScope("unsupported action " + string(action))
}
