package departments

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/rbac"
	"github.com/taskhub/taskhub/internal/shared"
)

// Service handles department management with per-action authorization.
type Service struct {
	repo       Repository
	roles      *rbac.Service
	authorizer *authz.Authorizer
}

// NewService builds a Service.
func NewService(repo Repository, roles *rbac.Service, authorizer *authz.Authorizer) *Service {
	return &Service{repo: repo, roles: roles, authorizer: authorizer}
}

// Input carries the mutable department fields.
type Input struct {
	Name        string
	Description string
	ManagerID   *int64
}

// List enumerates departments within the principal's scope. Staff see
// the full list; no narrowing is defined for them in this model.
func (s *Service) List(ctx context.Context, p *authz.Principal, search string) ([]Department, error) {
	if err := s.authorizer.Authorize(p, authz.ActionViewAny, authz.ResourceDepartment, nil).Err(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListFilters{
		Scope:  authz.ScopeFor(p, authz.ResourceDepartment),
		Search: search,
	})
}

// Get fetches a department when the view policy allows.
func (s *Service) Get(ctx context.Context, p *authz.Principal, id int64) (Department, error) {
	dept, err := s.repo.Get(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if err := s.authorizer.Authorize(p, authz.ActionView, authz.ResourceDepartment, dept.Ref()).Err(); err != nil {
		return Department{}, err
	}
	return dept, nil
}

// Create adds a department. When a manager is named at creation they
// receive the manager role if they do not already hold it.
func (s *Service) Create(ctx context.Context, p *authz.Principal, input Input) (Department, error) {
	if err := s.authorizer.Authorize(p, authz.ActionCreate, authz.ResourceDepartment, nil).Err(); err != nil {
		return Department{}, err
	}
	dept, err := s.repo.Create(ctx, Department{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		ManagerID:   input.ManagerID,
	})
	if err != nil {
		return Department{}, err
	}
	if input.ManagerID != nil {
		if err := s.roles.AssignRole(ctx, *input.ManagerID, shared.RoleManager); err != nil {
			return Department{}, err
		}
	}
	return dept, nil
}

// Update mutates name and description. Reassigning the manager is
// honored only for admins; manager callers' manager_id input is dropped,
// the limited-field rule being the caller-side concern.
func (s *Service) Update(ctx context.Context, p *authz.Principal, id int64, input Input) (Department, error) {
	dept, err := s.repo.Get(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if err := s.authorizer.Authorize(p, authz.ActionUpdate, authz.ResourceDepartment, dept.Ref()).Err(); err != nil {
		return Department{}, err
	}

	dept.Name = strings.TrimSpace(input.Name)
	dept.Description = strings.TrimSpace(input.Description)
	if err := s.repo.Update(ctx, id, dept); err != nil {
		return Department{}, err
	}

	if input.ManagerID != nil && p.HasRole(shared.RoleAdmin) {
		if err := s.repo.SetManager(ctx, id, input.ManagerID); err != nil {
			return Department{}, err
		}
		if err := s.roles.AssignRole(ctx, *input.ManagerID, shared.RoleManager); err != nil {
			return Department{}, err
		}
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a department. The department must have zero members; a
// populated one is a precondition failure, not an authorization failure.
func (s *Service) Delete(ctx context.Context, p *authz.Principal, id int64) error {
	dept, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizer.Authorize(p, authz.ActionDelete, authz.ResourceDepartment, dept.Ref()).Err(); err != nil {
		return err
	}
	members, err := s.repo.CountMembers(ctx, id)
	if err != nil {
		return err
	}
	if members > 0 {
		return fmt.Errorf("%w: department has %d member(s)", shared.ErrPreconditionFailed, members)
	}
	return s.repo.Delete(ctx, id)
}

// AssignManager sets the department's manager. Admin only. The grantee
// receives the manager role when missing.
func (s *Service) AssignManager(ctx context.Context, p *authz.Principal, id, managerID int64) (Department, error) {
	dept, err := s.repo.Get(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if err := s.authorizer.Authorize(p, authz.ActionAssignManager, authz.ResourceDepartment, dept.Ref()).Err(); err != nil {
		return Department{}, err
	}
	if err := s.repo.SetManager(ctx, id, &managerID); err != nil {
		return Department{}, err
	}
	if err := s.roles.AssignRole(ctx, managerID, shared.RoleManager); err != nil {
		return Department{}, err
	}
	return s.repo.Get(ctx, id)
}

// DepartmentStatistics reports the department's task load. Visible to
// admins and the department's own manager or members, via the view policy.
func (s *Service) DepartmentStatistics(ctx context.Context, p *authz.Principal, id int64) (Statistics, error) {
	dept, err := s.repo.Get(ctx, id)
	if err != nil {
		return Statistics{}, err
	}
	if err := s.authorizer.Authorize(p, authz.ActionView, authz.ResourceDepartment, dept.Ref()).Err(); err != nil {
		return Statistics{}, err
	}
	return s.repo.Statistics(ctx, id)
}
