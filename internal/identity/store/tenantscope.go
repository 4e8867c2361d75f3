package store

import (
	"context"

	"github.com/arkestra/identity/internal/identity/domain"
)

// TenantUsers wraps a Users repository with tenant enforcement: creates must
// carry the tenant id, and reads outside the tenant report not-found. This is
// a composition-based decorator, not a driver subclass, so any Users
// implementation gets the same behaviour.
type TenantUsers struct {
	inner    Users
	tenantID string
}

// ScopeUsers returns a Users view restricted to one tenant.
func ScopeUsers(inner Users, tenantID string) *TenantUsers {
	return &TenantUsers{inner: inner, tenantID: tenantID}
}

func (s *TenantUsers) CreateUser(ctx context.Context, u domain.User) error {
	if u.TenantID == "" {
		u.TenantID = s.tenantID
	}
	if u.TenantID != s.tenantID {
		return ErrNotFound
	}
	return s.inner.CreateUser(ctx, u)
}

func (s *TenantUsers) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := s.inner.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if u.TenantID != s.tenantID {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (s *TenantUsers) GetUserByEmail(ctx context.Context, tenantID, email string) (domain.User, error) {
	if tenantID != "" && tenantID != s.tenantID {
		return domain.User{}, ErrNotFound
	}
	return s.inner.GetUserByEmail(ctx, s.tenantID, email)
}

func (s *TenantUsers) SetUserActive(ctx context.Context, userID string, active bool) error {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.inner.SetUserActive(ctx, userID, active)
}

func (s *TenantUsers) CountActiveUsers(ctx context.Context, tenantID string) (int, error) {
	if tenantID != "" && tenantID != s.tenantID {
		return 0, ErrNotFound
	}
	return s.inner.CountActiveUsers(ctx, s.tenantID)
}
