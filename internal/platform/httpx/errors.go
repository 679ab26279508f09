package httpx

import (
	"errors"
	"net/http"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unauthenticated and forbidden stay distinct, as do forbidden and
// not-found: a denied caller must not be told a resource is missing.
func RespondError(w http.ResponseWriter, err error) {
	var denied *authz.DeniedError
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthenticated", "authentication required")
	case errors.As(err, &denied):
		d := denied.Decision
		JSON(w, http.StatusForbidden, ProblemDetail{
			Title:              "Forbidden",
			Status:             http.StatusForbidden,
			Detail:             denied.Error(),
			Reason:             string(d.Reason),
			RequiredPermission: d.RequiredPermission,
			RequiredRole:       d.RequiredRole,
		})
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrPreconditionFailed):
		Problem(w, http.StatusConflict, "Precondition Failed", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
