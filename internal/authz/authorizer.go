// Package authz implements the authorization core: the principal's
// role/permission catalog queries, per-resource policies, the precedence
// pipeline with the admin bypass, and the listing scope filter. It is
// purely computational; persistence and transport stay outside.
package authz

import "github.com/taskhub/taskhub/internal/shared"

// Policy evaluates one resource type's rules for a principal and action.
// Target is the resource under check, nil for class-level actions such as
// viewAny and create.
type Policy interface {
	Authorize(p *Principal, action Action, target any) Decision
}

// Authorizer is the single entry point every collaborator calls before
// touching a resource. It runs the global precedence gate first and only
// then dispatches to the registered resource policy.
type Authorizer struct {
	policies map[Resource]Policy
}

// NewAuthorizer returns an Authorizer with the three built-in policies
// registered.
func NewAuthorizer() *Authorizer {
	a := &Authorizer{policies: make(map[Resource]Policy)}
	a.Register(ResourceUser, UserPolicy{})
	a.Register(ResourceDepartment, DepartmentPolicy{})
	a.Register(ResourceTask, TaskPolicy{})
	return a
}

// Register binds a policy to a resource type, replacing any existing one.
func (a *Authorizer) Register(resource Resource, policy Policy) {
	a.policies[resource] = policy
}

// Authorize evaluates action on resource for the principal.
//
// Stage one is the admin bypass: an admin is allowed everything except
// deleting their own user record. That single carve-out keeps the
// self-delete denial in force for admins while every other resource
// policy stays dead code for them, and any policy added later inherits
// the bypass without modification.
func (a *Authorizer) Authorize(p *Principal, action Action, resource Resource, target any) Decision {
	if p == nil {
		return Decision{Reason: ReasonUnauthenticated}
	}

	if p.HasRole(shared.RoleAdmin) && !isSelfDelete(p, action, resource, target) {
		return allow(ReasonAdminBypass)
	}

	policy, ok := a.policies[resource]
	if !ok {
		return Decision{Reason: ReasonNoPolicy, Detail: "no policy registered for " + string(resource)}
	}
	return policy.Authorize(p, action, target)
}

// Can is a convenience wrapper returning only the boolean outcome.
func (a *Authorizer) Can(p *Principal, action Action, resource Resource, target any) bool {
	return a.Authorize(p, action, resource, target).Allowed
}

func isSelfDelete(p *Principal, action Action, resource Resource, target any) bool {
	if action != ActionDelete || resource != ResourceUser {
		return false
	}
	user, ok := target.(UserRef)
	return ok && user.ID == p.UserID
}
