package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates no resolvable principal on the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPreconditionFailed indicates a business-rule rejection distinct from
	// an authorization failure (delete with dependents, already-completed task).
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrValidation indicates malformed or invalid request input.
	ErrValidation = errors.New("validation failed")
)
