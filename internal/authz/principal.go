package authz

import (
	"context"

	"github.com/taskhub/taskhub/internal/shared"
)

// Principal is the authenticated caller's resolved identity: role and
// permission slugs are precomputed sets so every catalog query is a map
// lookup. It is rebuilt from storage on every request and never cached
// across requests, so a role sync takes effect on the next call.
type Principal struct {
	UserID       int64
	DepartmentID *int64
	Roles        map[string]struct{}
	Permissions  map[string]struct{}
}

// NewPrincipal builds a Principal from raw slug lists. Duplicate slugs
// collapse; permission slugs are the union across the user's roles.
func NewPrincipal(userID int64, departmentID *int64, roleSlugs, permissionSlugs []string) *Principal {
	p := &Principal{
		UserID:       userID,
		DepartmentID: departmentID,
		Roles:        make(map[string]struct{}, len(roleSlugs)),
		Permissions:  make(map[string]struct{}, len(permissionSlugs)),
	}
	for _, slug := range roleSlugs {
		p.Roles[slug] = struct{}{}
	}
	for _, slug := range permissionSlugs {
		p.Permissions[slug] = struct{}{}
	}
	return p
}

// HasRole reports whether the principal holds the role slug.
func (p *Principal) HasRole(slug string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Roles[slug]
	return ok
}

// HasAnyRole reports whether the principal holds at least one of the slugs.
func (p *Principal) HasAnyRole(slugs ...string) bool {
	for _, slug := range slugs {
		if p.HasRole(slug) {
			return true
		}
	}
	return false
}

// HasPermission reports whether the principal holds the permission slug.
// Admins pass unconditionally, whether or not the slug exists in the
// catalog: admin is omnipotent by role, not by attached permissions.
func (p *Principal) HasPermission(slug string) bool {
	if p == nil {
		return false
	}
	if p.HasRole(shared.RoleAdmin) {
		return true
	}
	_, ok := p.Permissions[slug]
	return ok
}

// HasAnyPermission reports whether the principal holds at least one slug.
func (p *Principal) HasAnyPermission(slugs ...string) bool {
	for _, slug := range slugs {
		if p.HasPermission(slug) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the principal holds every slug.
func (p *Principal) HasAllPermissions(slugs ...string) bool {
	for _, slug := range slugs {
		if !p.HasPermission(slug) {
			return false
		}
	}
	return true
}

// InDepartment reports whether the principal belongs to the department.
func (p *Principal) InDepartment(departmentID int64) bool {
	return p != nil && p.DepartmentID != nil && *p.DepartmentID == departmentID
}

// IsManagerOf reports whether the principal is a manager affiliated with
// the department.
func (p *Principal) IsManagerOf(departmentID int64) bool {
	return p.HasRole(shared.RoleManager) && p.InDepartment(departmentID)
}

// RoleSlugs returns the principal's role slugs for response rendering.
func (p *Principal) RoleSlugs() []string {
	if p == nil {
		return nil
	}
	slugs := make([]string, 0, len(p.Roles))
	for slug := range p.Roles {
		slugs = append(slugs, slug)
	}
	return slugs
}

// PermissionSlugs returns the principal's permission slugs.
func (p *Principal) PermissionSlugs() []string {
	if p == nil {
		return nil
	}
	slugs := make([]string, 0, len(p.Permissions))
	for slug := range p.Permissions {
		slugs = append(slugs, slug)
	}
	return slugs
}

// PrincipalSource resolves a Principal from persisted role and permission
// assignments. Implemented by the rbac repository.
type PrincipalSource interface {
	ResolvePrincipal(ctx context.Context, userID int64) (*Principal, error)
}

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal, nil when unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
