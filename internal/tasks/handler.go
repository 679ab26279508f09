package tasks

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/platform/httpx"
	"github.com/taskhub/taskhub/internal/rbac"
	"github.com/taskhub/taskhub/internal/shared"
)

// Handler exposes the task management API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	mw       rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), mw: mw}
}

// MountRoutes registers task routes. The fixed paths must come before
// the /{id} wildcards.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.mw.RequirePermission(shared.PermTasksView)).Get("/", h.list)
	r.With(h.mw.RequirePermission(shared.PermTasksCreate)).Post("/", h.create)
	r.With(h.mw.RequireAuthenticated).Get("/my-tasks", h.myTasks)
	r.With(h.mw.RequireAuthenticated).Get("/statistics", h.statistics)
	r.With(h.mw.RequireAuthenticated).Get("/{id}", h.get)
	r.With(h.mw.RequireAuthenticated).Put("/{id}", h.update)
	r.With(h.mw.RequirePermission(shared.PermTasksDelete)).Delete("/{id}", h.delete)
	r.With(h.mw.RequireAuthenticated).Post("/{id}/complete", h.complete)
	r.With(h.mw.RequireAuthenticated).Patch("/{id}/status", h.updateStatus)
	r.With(h.mw.RequireRole(shared.RoleAdmin, shared.RoleManager)).Post("/{id}/reassign", h.reassign)
}

type createRequest struct {
	Title        string     `json:"title" validate:"required,max=255"`
	Description  string     `json:"description"`
	Status       string     `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	DepartmentID int64      `json:"department_id" validate:"required"`
	AssignedTo   int64      `json:"assigned_to" validate:"required"`
	DueDate      *time.Time `json:"due_date"`
}

type updateRequest struct {
	Title        *string    `json:"title" validate:"omitempty,max=255"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	DepartmentID *int64     `json:"department_id"`
	AssignedTo   *int64     `json:"assigned_to"`
	DueDate      *time.Time `json:"due_date"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed"`
}

type reassignRequest struct {
	AssignedTo int64 `json:"assigned_to" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = 15
	}
	if page < 1 {
		page = 1
	}

	filters := ListFilters{
		Status:  Status(q.Get("status")),
		Page:    page,
		PerPage: perPage,
	}
	if raw := q.Get("department_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.DepartmentID = &id
		}
	}
	if raw := q.Get("assigned_to"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.AssignedTo = &id
		}
	}

	list, total, err := h.service.List(r.Context(), p, filters)
	if err != nil {
		h.fail(w, r, "list tasks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tasks": list,
		"meta":  shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) myTasks(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	list, err := h.service.MyTasks(r.Context(), p, Status(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, "list my tasks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.MyStatistics(r.Context(), authz.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "task statistics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"statistics": stats})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	task, err := h.service.Get(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "get task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	task, err := h.service.Create(r.Context(), authz.PrincipalFromContext(r.Context()), CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Status:       Status(req.Status),
		DepartmentID: req.DepartmentID,
		AssignedTo:   req.AssignedTo,
		DueDate:      req.DueDate,
	})
	if err != nil {
		h.fail(w, r, "create task", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"task": task, "message": "Task created successfully"})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := UpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		DepartmentID: req.DepartmentID,
		AssignedTo:   req.AssignedTo,
		DueDate:      req.DueDate,
	}
	if req.Status != nil {
		s := Status(*req.Status)
		input.Status = &s
	}
	task, err := h.service.Update(r.Context(), authz.PrincipalFromContext(r.Context()), id, input)
	if err != nil {
		h.fail(w, r, "update task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task, "message": "Task updated successfully"})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	task, err := h.service.UpdateStatus(r.Context(), authz.PrincipalFromContext(r.Context()), id, Status(req.Status))
	if err != nil {
		h.fail(w, r, "update task status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task, "message": "Task status updated successfully"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), authz.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, r, "delete task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Task deleted successfully"})
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	task, err := h.service.Complete(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "complete task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task, "message": "Task marked as completed"})
}

func (h *Handler) reassign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reassignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	task, err := h.service.Reassign(r.Context(), authz.PrincipalFromContext(r.Context()), id, req.AssignedTo)
	if err != nil {
		h.fail(w, r, "reassign task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task, "message": "Task reassigned successfully"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op+" failed", slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}
