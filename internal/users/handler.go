package users

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

// Handler exposes the user management API.
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

// MountRoutes registers user routes. Route-level gates mirror the
// original API; target-level policy checks run in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.mw.RequirePermission(shared.PermUsersView)).Get("/", h.list)
	r.With(h.mw.RequirePermission(shared.PermUsersCreate)).Post("/", h.create)
	r.With(h.mw.RequirePermission(shared.PermUsersView)).Get("/department/{departmentID}", h.listByDepartment)
	r.With(h.mw.RequireAuthenticated).Get("/{id}", h.get)
	r.With(h.mw.RequireAuthenticated).Put("/{id}", h.update)
	r.With(h.mw.RequirePermission(shared.PermUsersDelete)).Delete("/{id}", h.delete)
	r.With(h.mw.RequireRole(shared.RoleAdmin)).Post("/{id}/roles", h.assignRoles)
}

type createRequest struct {
	Name         string   `json:"name" validate:"required,max=255"`
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required,min=8"`
	DepartmentID *int64   `json:"department_id"`
	Roles        []string `json:"roles"`
}

type updateRequest struct {
	Name         string   `json:"name" validate:"required,max=255"`
	Email        string   `json:"email" validate:"required,email"`
	Password     *string  `json:"password"`
	DepartmentID *int64   `json:"department_id"`
	Roles        []string `json:"roles"`
}

type rolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1"`
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
		Search:   q.Get("search"),
		RoleSlug: q.Get("role"),
		Page:     page,
		PerPage:  perPage,
	}
	if raw := q.Get("department_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.DepartmentID = &id
		}
	}

	list, total, err := h.service.List(r.Context(), p, filters)
	if err != nil {
		h.fail(w, r, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users": list,
		"meta":  shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) listByDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "departmentID")
	if !ok {
		return
	}
	members, err := h.service.ListByDepartment(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "list department users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": members})
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
	user, err := h.service.Create(r.Context(), authz.PrincipalFromContext(r.Context()), CreateInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		DepartmentID: req.DepartmentID,
		Roles:        req.Roles,
	})
	if err != nil {
		h.fail(w, r, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": user, "message": "User created successfully"})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
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
	user, err := h.service.Update(r.Context(), authz.PrincipalFromContext(r.Context()), id, UpdateInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		DepartmentID: req.DepartmentID,
		Roles:        req.Roles,
	})
	if err != nil {
		h.fail(w, r, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user, "message": "User updated successfully"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), authz.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, r, "delete user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "User deleted successfully"})
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req rolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.AssignRoles(r.Context(), authz.PrincipalFromContext(r.Context()), id, req.Roles)
	if err != nil {
		h.fail(w, r, "assign roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user, "message": "Roles assigned successfully"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+param)
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
