package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkestra/identity/internal/identity/domain"
)

func TestPermissionResolve(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	acme := registerAcme(t, env)

	graceID, err := env.registration.RegisterUser(ctx, RegisterUserCommand{
		TenantID: acme.TenantID,
		Username: "grace",
		Email:    "grace@acme.test",
		Password: "longenough",
		FullName: "Grace Hopper",
		Role:     "user",
	})
	require.NoError(t, err)

	t.Run("unknown user resolves to empty set", func(t *testing.T) {
		perms, err := env.permissions.Resolve(ctx, "01K00000000000000000000000")
		require.NoError(t, err)
		require.Empty(t, perms)
	})

	t.Run("admin short-circuits to wildcard", func(t *testing.T) {
		perms, err := env.permissions.Resolve(ctx, acme.AdminUserID)
		require.NoError(t, err)
		require.Len(t, perms, 1)
		require.True(t, perms.Has(domain.PermissionWildcard))
	})

	t.Run("regular user gets role permissions", func(t *testing.T) {
		perms, err := env.permissions.Resolve(ctx, graceID)
		require.NoError(t, err)
		require.True(t, perms.Has(domain.PermUsersReadSelf))
		require.False(t, perms.Has(domain.PermUsersDelete))
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		perms, err := env.permissions.Resolve(ctx, graceID)
		require.NoError(t, err)
		require.True(t, perms.Has("Users.Read-Self"))
	})

	t.Run("deactivated user resolves to empty set", func(t *testing.T) {
		eveID, err := env.registration.RegisterUser(ctx, RegisterUserCommand{
			TenantID: acme.TenantID,
			Username: "eve",
			Email:    "eve@acme.test",
			Password: "longenough",
			FullName: "Eve",
			Role:     "user",
		})
		require.NoError(t, err)
		require.NoError(t, env.users.DeactivateUser(ctx, DeactivateUserCommand{
			TenantID: acme.TenantID,
			UserID:   eveID,
		}))

		perms, err := env.permissions.Resolve(ctx, eveID)
		require.NoError(t, err)
		require.Empty(t, perms)
	})
}

func TestAuthzDecide(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	acme := registerAcme(t, env)

	graceID, err := env.registration.RegisterUser(ctx, RegisterUserCommand{
		TenantID: acme.TenantID,
		Username: "grace",
		Email:    "grace@acme.test",
		Password: "longenough",
		FullName: "Grace Hopper",
		Role:     "user",
	})
	require.NoError(t, err)

	admin := Principal{UserID: acme.AdminUserID, TenantID: acme.TenantID, Roles: []string{"Admin"}}
	grace := Principal{UserID: graceID, TenantID: acme.TenantID, Roles: []string{"User"}}

	t.Run("unauthenticated is denied", func(t *testing.T) {
		err := env.authz.Decide(ctx, Principal{}, domain.PermUsersReadSelf)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("admin role claim allows anything", func(t *testing.T) {
		require.NoError(t, env.authz.Decide(ctx, admin, domain.PermUsersDelete))
		require.NoError(t, env.authz.Decide(ctx, admin, "some.future.permission"))
	})

	t.Run("user allowed for granted permission", func(t *testing.T) {
		require.NoError(t, env.authz.Decide(ctx, grace, domain.PermUsersReadSelf))
	})

	t.Run("user denied for missing permission", func(t *testing.T) {
		err := env.authz.Decide(ctx, grace, domain.PermUsersDelete)
		require.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("unknown principal is denied not unauthenticated", func(t *testing.T) {
		ghost := Principal{UserID: "01K00000000000000000000000", Roles: []string{"User"}}
		err := env.authz.Decide(ctx, ghost, domain.PermUsersReadSelf)
		require.ErrorIs(t, err, ErrPermissionDenied)
	})
}
