package service

import (
	"context"
	"log/slog"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/pkg/slogx"
)

// Principal is the authenticated caller extracted from a verified access
// token. A zero Principal means no authentication was presented.
type Principal struct {
	UserID   string
	TenantID string
	Email    string
	Roles    []string
}

// Authenticated reports whether the principal carries a verified identity.
func (p Principal) Authenticated() bool { return p.UserID != "" }

// HasRole reports whether the principal's token claims the role name.
func (p Principal) HasRole(name string) bool {
	for _, r := range p.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// AuthzService makes the per-request allow/deny decision. Decisions are
// never cached: a permission granted or revoked mid-session takes effect on
// the next request.
type AuthzService struct {
	Permissions *PermissionService
}

// Decide returns nil when the principal may perform the operation guarded by
// required. Unauthenticated callers get ErrUnauthenticated; authenticated
// callers without the permission get ErrPermissionDenied. An Admin role claim
// allows without resolving, matching the wildcard the resolver would return.
func (s *AuthzService) Decide(ctx context.Context, p Principal, required string) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}

	if p.HasRole(domain.RoleAdmin.String()) {
		return nil
	}

	perms, err := s.Permissions.Resolve(ctx, p.UserID)
	if err != nil {
		// Resolution trouble denies; it never defaults to allow.
		slogx.FromContext(ctx).Error("permission resolution failed",
			slog.String("user_id", p.UserID),
			slog.Any("error", err),
		)
		return ErrPermissionDenied
	}

	if perms.Has(required) || perms.Has(domain.PermissionWildcard) {
		return nil
	}
	return ErrPermissionDenied
}
