package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/platform/httpx"
)

// Middleware provides declarative role and permission gates for routes.
// Both distinguish a missing principal (401) from a failed check (403)
// and surface the required slugs in the denial payload.
type Middleware struct {
	Logger *slog.Logger
}

// RequireRole passes when the principal holds at least one of the roles.
func (m Middleware) RequireRole(slugs ...string) func(http.Handler) http.Handler {
	normalized := normalizeSlugs(slugs)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			p := authz.PrincipalFromContext(r.Context())
			if p == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "authentication required")
				return
			}
			if p.HasAnyRole(normalized...) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, httpx.ProblemDetail{
				Title:        "Forbidden",
				Status:       http.StatusForbidden,
				Detail:       "you do not have the required role to access this resource",
				Reason:       string(authz.ReasonMissingRole),
				RequiredRole: strings.Join(normalized, ","),
			})
		})
	}
}

// RequirePermission passes when the principal holds at least one of the
// permission slugs. Admins always pass via the catalog shortcut.
func (m Middleware) RequirePermission(slugs ...string) func(http.Handler) http.Handler {
	normalized := normalizeSlugs(slugs)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			p := authz.PrincipalFromContext(r.Context())
			if p == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "authentication required")
				return
			}
			if p.HasAnyPermission(normalized...) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, httpx.ProblemDetail{
				Title:              "Forbidden",
				Status:             http.StatusForbidden,
				Detail:             "you do not have the required permission to access this resource",
				Reason:             string(authz.ReasonMissingPermission),
				RequiredPermission: strings.Join(normalized, ","),
			})
		})
	}
}

// RequireAuthenticated passes any request carrying a resolved principal.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authz.PrincipalFromContext(r.Context()) == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, problem httpx.ProblemDetail) {
	if m.Logger != nil {
		m.Logger.Info("request denied",
			slog.String("path", r.URL.Path),
			slog.String("reason", problem.Reason))
	}
	httpx.JSON(w, http.StatusForbidden, problem)
}

func normalizeSlugs(slugs []string) []string {
	unique := make(map[string]struct{}, len(slugs))
	normalized := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		slug = strings.TrimSpace(strings.ToLower(slug))
		if slug == "" {
			continue
		}
		if _, ok := unique[slug]; ok {
			continue
		}
		unique[slug] = struct{}{}
		normalized = append(normalized, slug)
	}
	return normalized
}
