package service

import (
	"context"
	"errors"
	"strings"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/store"
)

// PermissionSet is a case-normalized set of permission strings.
type PermissionSet map[string]struct{}

// Has reports whether perm is in the set, case-insensitively.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[strings.ToLower(perm)]
	return ok
}

func (s PermissionSet) add(perm string) {
	s[strings.ToLower(perm)] = struct{}{}
}

// PermissionService computes a user's effective permissions. Resolution is
// evaluated fresh on every call; there is no cache to go stale when a role's
// permissions change.
type PermissionService struct {
	Store store.Store
}

// Resolve returns the user's effective permission set. It fails closed: an
// unknown or deactivated user resolves to the empty set, never to an error a
// caller might mistake for "allow". Admins short-circuit to the wildcard
// without touching the role tables.
func (s *PermissionService) Resolve(ctx context.Context, userID string) (PermissionSet, error) {
	perms := make(PermissionSet)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return perms, nil
		}
		return nil, err
	}
	if !user.Active {
		return perms, nil
	}

	if user.Role == domain.RoleAdmin {
		perms.add(domain.PermissionWildcard)
		return perms, nil
	}

	role, err := s.Store.Roles().GetRoleByName(ctx, user.TenantID, user.Role.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return perms, nil
		}
		return nil, err
	}

	for _, perm := range role.Permissions {
		perms.add(perm)
	}
	return perms, nil
}
