package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/shared"
)

// Service handles task management with per-action authorization.
type Service struct {
	repo       Repository
	authorizer *authz.Authorizer
	clock      func() time.Time
}

// NewService builds a Service.
func NewService(repo Repository, authorizer *authz.Authorizer) *Service {
	return &Service{
		repo:       repo,
		authorizer: authorizer,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries fields for a new task.
type CreateInput struct {
	Title        string
	Description  string
	Status       Status
	DepartmentID int64
	AssignedTo   int64
	DueDate      *time.Time
}

// UpdateInput carries a partial patch; nil fields stay unchanged.
type UpdateInput struct {
	Title        *string
	Description  *string
	Status       *Status
	DepartmentID *int64
	AssignedTo   *int64
	DueDate      *time.Time
}

// List enumerates tasks within the principal's scope. Staff are pinned
// to their own assignments; their explicit department/assignee filters
// are silently dropped.
func (s *Service) List(ctx context.Context, p *authz.Principal, filters ListFilters) ([]Task, int, error) {
	if err := s.authorizer.Authorize(p, authz.ActionViewAny, authz.ResourceTask, nil).Err(); err != nil {
		return nil, 0, err
	}
	if filters.Status != "" && !ValidStatus(filters.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filters.Status)
	}
	filters.Scope = authz.ScopeFor(p, authz.ResourceTask)
	if !authz.AllowsExplicitFilters(p) {
		filters.DepartmentID = nil
		filters.AssignedTo = nil
	}
	return s.repo.List(ctx, filters)
}

// Get fetches one task when the view policy allows.
func (s *Service) Get(ctx context.Context, p *authz.Principal, id int64) (Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if err := s.authorizer.Authorize(p, authz.ActionView, authz.ResourceTask, task.Ref()).Err(); err != nil {
		return Task{}, err
	}
	return task, nil
}

// MyTasks lists the caller's own assignments, optionally by status. Only
// authentication is required; the result is scoped to the caller by
// construction.
func (s *Service) MyTasks(ctx context.Context, p *authz.Principal, status Status) ([]Task, error) {
	if p == nil {
		return nil, shared.ErrUnauthenticated
	}
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	uid := p.UserID
	list, _, err := s.repo.List(ctx, ListFilters{
		Scope:  authz.Scope{AssignedTo: &uid},
		Status: status,
	})
	return list, err
}

// Create adds a task assigned by the caller.
func (s *Service) Create(ctx context.Context, p *authz.Principal, input CreateInput) (Task, error) {
	if err := s.authorizer.Authorize(p, authz.ActionCreate, authz.ResourceTask, nil).Err(); err != nil {
		return Task{}, err
	}
	status := input.Status
	if status == "" {
		status = StatusPending
	}
	if !ValidStatus(status) {
		return Task{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	return s.repo.Create(ctx, Task{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Status:       status,
		DepartmentID: input.DepartmentID,
		AssignedTo:   input.AssignedTo,
		AssignedBy:   p.UserID,
		DueDate:      input.DueDate,
	})
}

// Update patches a task. The update policy decides whether the caller
// may touch the resource at all; a staff assignee's patch is then
// narrowed to the status field before it reaches storage. That field
// selection is deliberately the caller side of the authorization split.
func (s *Service) Update(ctx context.Context, p *authz.Principal, id int64, input UpdateInput) (Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if err := s.authorizer.Authorize(p, authz.ActionUpdate, authz.ResourceTask, task.Ref()).Err(); err != nil {
		return Task{}, err
	}

	statusOnly := p.HasRole(shared.RoleStaff) && !p.HasAnyRole(shared.RoleManager, shared.RoleAdmin)
	if !statusOnly {
		if input.Title != nil {
			task.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			task.Description = strings.TrimSpace(*input.Description)
		}
		if input.DepartmentID != nil {
			task.DepartmentID = *input.DepartmentID
		}
		if input.AssignedTo != nil {
			task.AssignedTo = *input.AssignedTo
		}
		if input.DueDate != nil {
			task.DueDate = input.DueDate
		}
	}
	if input.Status != nil {
		if !ValidStatus(*input.Status) {
			return Task{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, *input.Status)
		}
		task.Status = *input.Status
	}

	if err := s.repo.Update(ctx, id, task); err != nil {
		return Task{}, err
	}
	return s.repo.Get(ctx, id)
}

// UpdateStatus changes only the task's status.
func (s *Service) UpdateStatus(ctx context.Context, p *authz.Principal, id int64, status Status) (Task, error) {
	if !ValidStatus(status) {
		return Task{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if err := s.authorizer.Authorize(p, authz.ActionUpdate, authz.ResourceTask, task.Ref()).Err(); err != nil {
		return Task{}, err
	}
	task.Status = status
	if err := s.repo.Update(ctx, id, task); err != nil {
		return Task{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, p *authz.Principal, id int64) error {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizer.Authorize(p, authz.ActionDelete, authz.ResourceTask, task.Ref()).Err(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Complete marks a task completed. Completing a completed task is a
// precondition failure, not an authorization failure.
func (s *Service) Complete(ctx context.Context, p *authz.Principal, id int64) (Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if err := s.authorizer.Authorize(p, authz.ActionComplete, authz.ResourceTask, task.Ref()).Err(); err != nil {
		return Task{}, err
	}
	if task.IsCompleted() {
		return Task{}, fmt.Errorf("%w: task is already completed", shared.ErrPreconditionFailed)
	}
	task.Status = StatusCompleted
	if err := s.repo.Update(ctx, id, task); err != nil {
		return Task{}, err
	}
	return s.repo.Get(ctx, id)
}

// Reassign hands the task to another user and records the caller as the
// assigner.
func (s *Service) Reassign(ctx context.Context, p *authz.Principal, id, assignedTo int64) (Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if err := s.authorizer.Authorize(p, authz.ActionReassign, authz.ResourceTask, task.Ref()).Err(); err != nil {
		return Task{}, err
	}
	task.AssignedTo = assignedTo
	task.AssignedBy = p.UserID
	if err := s.repo.Update(ctx, id, task); err != nil {
		return Task{}, err
	}
	return s.repo.Get(ctx, id)
}

// MyStatistics reports task counts over the caller's visible scope.
func (s *Service) MyStatistics(ctx context.Context, p *authz.Principal) (Statistics, error) {
	if p == nil {
		return Statistics{}, shared.ErrUnauthenticated
	}
	scope := authz.ScopeFor(p, authz.ResourceTask)
	return s.repo.Statistics(ctx, scopeArgs{
		All:          scope.All,
		DepartmentID: scope.DepartmentID,
		AssignedTo:   scope.AssignedTo,
	}, s.clock())
}
