package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskhub/taskhub/internal/shared"
)

// Service orchestrates catalog management and the user-role graph.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role with a unique slug.
func (s *Service) CreateRole(ctx context.Context, name, slug, description string) (Role, error) {
	name = strings.TrimSpace(name)
	slug = strings.ToLower(strings.TrimSpace(slug))
	if name == "" || slug == "" {
		return Role{}, fmt.Errorf("%w: role name and slug required", shared.ErrValidation)
	}
	return s.repo.CreateRole(ctx, Role{Name: name, Slug: slug, Description: strings.TrimSpace(description)})
}

// UpdateRole updates a role's name and description. Slugs never change.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	return s.repo.UpdateRole(ctx, Role{ID: id, Name: name, Description: strings.TrimSpace(description)})
}

// DeleteRole removes a role. The reserved system roles are never
// deletable, and neither is any role still assigned to users.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if isReservedSlug(role.Slug) {
		return fmt.Errorf("%w: %q is a protected system role", shared.ErrPreconditionFailed, role.Slug)
	}
	n, err := s.repo.CountRoleUsers(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: role is assigned to %d user(s)", shared.ErrPreconditionFailed, n)
	}
	return s.repo.DeleteRole(ctx, id)
}

// ListPermissions returns the full permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// RolePermissions returns the permissions attached to a role.
func (s *Service) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.ListRolePermissions(ctx, roleID)
}

// SetRolePermissions replaces the role's permission set (full-replace,
// duplicate IDs collapse).
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	return s.repo.ReplaceRolePermissions(ctx, roleID, dedupe(permissionIDs))
}

// AssignRole attaches a role, by slug, to a user. Idempotent.
func (s *Service) AssignRole(ctx context.Context, userID int64, slug string) error {
	role, err := s.repo.GetRoleBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.repo.AssignRole(ctx, userID, role.ID)
}

// RemoveRole detaches a role, by slug, from a user.
func (s *Service) RemoveRole(ctx context.Context, userID int64, slug string) error {
	role, err := s.repo.GetRoleBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.repo.RemoveRole(ctx, userID, role.ID)
}

// SyncRoles replaces the user's role set with the roles named by the
// given slugs. Unknown slugs are skipped, matching the original behavior
// of resolving what it can. Running the same sync twice yields the same
// final set.
func (s *Service) SyncRoles(ctx context.Context, userID int64, slugs []string) error {
	var roleIDs []int64
	for _, slug := range slugs {
		role, err := s.repo.GetRoleBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return err
		}
		roleIDs = append(roleIDs, role.ID)
	}
	return s.repo.SyncUserRoles(ctx, userID, dedupe(roleIDs))
}

// RolesForUser returns the user's assigned roles.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	return s.repo.RolesForUser(ctx, userID)
}

func isReservedSlug(slug string) bool {
	for _, reserved := range shared.ReservedRoleSlugs() {
		if slug == reserved {
			return true
		}
	}
	return false
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
