package departments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/platform/httpx"
	"github.com/taskhub/taskhub/internal/rbac"
	"github.com/taskhub/taskhub/internal/shared"
)

// Handler exposes the department management API.
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

// MountRoutes registers department routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.mw.RequirePermission(shared.PermDepartmentsView)).Get("/", h.list)
	r.With(h.mw.RequirePermission(shared.PermDepartmentsCreate)).Post("/", h.create)
	r.With(h.mw.RequirePermission(shared.PermDepartmentsView)).Get("/{id}", h.get)
	r.With(h.mw.RequireAuthenticated).Put("/{id}", h.update)
	r.With(h.mw.RequirePermission(shared.PermDepartmentsDelete)).Delete("/{id}", h.delete)
	r.With(h.mw.RequireRole(shared.RoleAdmin)).Post("/{id}/assign-manager", h.assignManager)
	r.With(h.mw.RequirePermission(shared.PermDepartmentsView)).Get("/{id}/statistics", h.statistics)
}

type departmentRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
	ManagerID   *int64 `json:"manager_id"`
}

type assignManagerRequest struct {
	ManagerID int64 `json:"manager_id" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	depts, err := h.service.List(r.Context(), authz.PrincipalFromContext(r.Context()), r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, "list departments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": depts})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	dept, err := h.service.Get(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "get department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"department": dept})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dept, err := h.service.Create(r.Context(), authz.PrincipalFromContext(r.Context()), Input{
		Name:        req.Name,
		Description: req.Description,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		h.fail(w, r, "create department", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"department": dept, "message": "Department created successfully"})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req departmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dept, err := h.service.Update(r.Context(), authz.PrincipalFromContext(r.Context()), id, Input{
		Name:        req.Name,
		Description: req.Description,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		h.fail(w, r, "update department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"department": dept, "message": "Department updated successfully"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), authz.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, r, "delete department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Department deleted successfully"})
}

func (h *Handler) assignManager(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req assignManagerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dept, err := h.service.AssignManager(r.Context(), authz.PrincipalFromContext(r.Context()), id, req.ManagerID)
	if err != nil {
		h.fail(w, r, "assign manager", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"department": dept, "message": "Manager assigned successfully"})
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	stats, err := h.service.DepartmentStatistics(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "department statistics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"statistics": stats})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid department ID")
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
