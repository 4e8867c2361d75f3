package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential covers wrong password, unknown email, inactive
	// user and bad refresh tokens alike. Callers are told nothing more.
	ErrInvalidCredential = errors.New("invalid_credential")

	// ErrUnauthenticated means no verifiable principal was presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied means the principal is known but lacks the
	// required permission. Deliberately distinct from ErrUnauthenticated.
	ErrPermissionDenied = errors.New("permission_denied")

	// ErrTenantExists is returned when the tenant name is already taken.
	ErrTenantExists = errors.New("tenant_exists")

	// ErrEmailTaken is returned when the email is already registered
	// within the tenant.
	ErrEmailTaken = errors.New("email_taken")

	// ErrLastActiveUser guards against deactivating a tenant's sole
	// remaining active user.
	ErrLastActiveUser = errors.New("last_active_user")
)

// ValidationError reports a structured input failure before any write is
// attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
