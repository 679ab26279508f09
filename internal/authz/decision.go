package authz

import "fmt"

// Action names an operation checked against a policy.
type Action string

// Actions shared by every resource plus the resource-specific ones.
const (
	ActionViewAny       Action = "viewAny"
	ActionView          Action = "view"
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionAssignRoles   Action = "assignRoles"
	ActionAssignManager Action = "assignManager"
	ActionAssign        Action = "assign"
	ActionReassign      Action = "reassign"
	ActionComplete      Action = "complete"
)

// Resource names a policy-governed resource type.
type Resource string

const (
	ResourceUser       Resource = "user"
	ResourceDepartment Resource = "department"
	ResourceTask       Resource = "task"
)

// Reason is the machine-readable outcome of an authorization check.
type Reason string

const (
	ReasonAdminBypass       Reason = "admin_bypass"
	ReasonGranted           Reason = "granted"
	ReasonUnauthenticated   Reason = "unauthenticated"
	ReasonMissingPermission Reason = "missing_permission"
	ReasonMissingRole       Reason = "missing_role"
	ReasonScopeMismatch     Reason = "scope_mismatch"
	ReasonSelfActionDenied  Reason = "self_action_denied"
	ReasonNoPolicy          Reason = "no_policy"
)

// Decision is the value result of a single authorization evaluation.
// Denials are terminal and reportable; they never surface as panics.
type Decision struct {
	Allowed            bool
	Reason             Reason
	RequiredPermission string
	RequiredRole       string
	Detail             string
}

// Err converts a denial into a DeniedError, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Decision: d}
}

// DeniedError carries a denial across the service boundary so transports
// can map it to 403 with the reason intact.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	d := e.Decision
	switch {
	case d.RequiredPermission != "":
		return fmt.Sprintf("forbidden: requires permission %q", d.RequiredPermission)
	case d.RequiredRole != "":
		return fmt.Sprintf("forbidden: requires role %q", d.RequiredRole)
	case d.Detail != "":
		return "forbidden: " + d.Detail
	default:
		return "forbidden: " + string(d.Reason)
	}
}

func allow(reason Reason) Decision {
	return Decision{Allowed: true, Reason: reason}
}

func denyPermission(slug string) Decision {
	return Decision{Reason: ReasonMissingPermission, RequiredPermission: slug}
}

func denyRole(slug string) Decision {
	return Decision{Reason: ReasonMissingRole, RequiredRole: slug}
}

func denyScope(detail string) Decision {
	return Decision{Reason: ReasonScopeMismatch, Detail: detail}
}
