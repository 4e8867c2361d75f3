package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/internal/identity/store/drivers/sqlite"
	"github.com/arkestra/identity/internal/identity/uow"
	"github.com/arkestra/identity/pkg/jwtx"
)

type testEnv struct {
	store      store.Store
	factory    *uow.Factory
	dispatcher *captureDispatcher

	registration *RegistrationService
	users        *UserService
	sessions     *SessionService
	permissions  *PermissionService
	authz        *AuthzService
}

type captureDispatcher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (d *captureDispatcher) Dispatch(ctx context.Context, evts []domain.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evts...)
	return nil
}

func (d *captureDispatcher) names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Name())
	}
	return out
}

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := &captureDispatcher{}
	factory := uow.NewFactory(st, dispatcher, logger)

	signer, err := jwtx.NewSignerHS256(testSigningKey)
	require.NoError(t, err)
	verifier, err := jwtx.NewVerifierHS256(testSigningKey, "identity-test", "identity-api")
	require.NoError(t, err)

	permissions := &PermissionService{Store: st}

	return &testEnv{
		store:      st,
		factory:    factory,
		dispatcher: dispatcher,
		registration: &RegistrationService{
			Coordinators: factory,
			Store:        st,
			Provisioner:  &RoleProvisioner{},
		},
		users: &UserService{Coordinators: factory},
		sessions: &SessionService{
			Signer:     signer,
			Verifier:   verifier,
			Store:      st,
			Issuer:     "identity-test",
			Audience:   "identity-api",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		permissions: permissions,
		authz:       &AuthzService{Permissions: permissions},
	}
}

func registerAcme(t *testing.T, env *testEnv) RegisterTenantResult {
	t.Helper()

	result, err := env.registration.RegisterTenant(context.Background(), RegisterTenantCommand{
		TenantName:    "Acme",
		AdminUsername: "ada",
		AdminEmail:    "ada@acme.test",
		AdminPassword: "correct horse battery",
		AdminFullName: "Ada Lovelace",
	})
	require.NoError(t, err)
	return result
}

func TestRegisterTenant(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	result := registerAcme(t, env)
	require.NotEmpty(t, result.TenantID)
	require.NotEmpty(t, result.AdminUserID)

	tenant, err := env.store.Tenants().GetTenantByName(ctx, "Acme")
	require.NoError(t, err)
	require.Equal(t, result.TenantID, tenant.ID)
	require.True(t, tenant.Active)
	require.Equal(t, domain.TenantStatusActive, tenant.Status)

	admin, err := env.store.Users().GetUserByID(ctx, result.AdminUserID)
	require.NoError(t, err)
	require.Equal(t, tenant.ID, admin.TenantID)
	require.Equal(t, "ada@acme.test", admin.Email)
	require.Equal(t, domain.RoleAdmin, admin.Role)
	require.True(t, admin.Active)
	require.NotEqual(t, "correct horse battery", admin.PasswordHash)

	adminRole, err := env.store.Roles().GetRoleByName(ctx, tenant.ID, "Admin")
	require.NoError(t, err)
	require.Equal(t, "ADMIN", adminRole.NormalizedName)
	require.ElementsMatch(t,
		[]string{"users.create", "users.delete", "users.update", "tenants.manage", "*"},
		adminRole.Permissions,
	)

	userRole, err := env.store.Roles().GetRoleByName(ctx, tenant.ID, "User")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"users.read-self"}, userRole.Permissions)

	require.Equal(t, []string{domain.EventTenantCreated, domain.EventUserRegistered}, env.dispatcher.names())
}

func TestRegisterTenant_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	valid := RegisterTenantCommand{
		TenantName:    "Acme",
		AdminUsername: "ada",
		AdminEmail:    "ada@acme.test",
		AdminPassword: "longenough",
		AdminFullName: "Ada Lovelace",
	}

	cases := []struct {
		name   string
		mutate func(*RegisterTenantCommand)
		field  string
	}{
		{"missing tenant name", func(c *RegisterTenantCommand) { c.TenantName = "  " }, "tenantName"},
		{"tenant name too long", func(c *RegisterTenantCommand) { c.TenantName = strings.Repeat("a", 101) }, "tenantName"},
		{"invalid email", func(c *RegisterTenantCommand) { c.AdminEmail = "not-an-email" }, "email"},
		{"short password", func(c *RegisterTenantCommand) { c.AdminPassword = "short" }, "password"},
		{"missing full name", func(c *RegisterTenantCommand) { c.AdminFullName = "" }, "fullName"},
		{"missing username", func(c *RegisterTenantCommand) { c.AdminUsername = "" }, "username"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := valid
			tc.mutate(&cmd)

			_, err := env.registration.RegisterTenant(ctx, cmd)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
		})
	}

	// Nothing was written by any of the rejected commands.
	_, err := env.store.Tenants().GetTenantByName(ctx, "Acme")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegisterTenant_DuplicateName(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	registerAcme(t, env)

	_, err := env.registration.RegisterTenant(context.Background(), RegisterTenantCommand{
		TenantName:    "Acme",
		AdminUsername: "grace",
		AdminEmail:    "grace@other.test",
		AdminPassword: "longenough",
		AdminFullName: "Grace Hopper",
	})
	require.ErrorIs(t, err, ErrTenantExists)
}

func TestRegisterUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	acme := registerAcme(t, env)

	t.Run("creates user in tenant", func(t *testing.T) {
		id, err := env.registration.RegisterUser(ctx, RegisterUserCommand{
			TenantID: acme.TenantID,
			Username: "grace",
			Email:    "grace@acme.test",
			Password: "longenough",
			FullName: "Grace Hopper",
			Role:     "user",
		})
		require.NoError(t, err)

		user, err := env.store.Users().GetUserByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, acme.TenantID, user.TenantID)
		require.Equal(t, domain.RoleUser, user.Role)
		require.Contains(t, env.dispatcher.names(), domain.EventUserRegistered)
	})

	t.Run("rejects duplicate email within tenant", func(t *testing.T) {
		_, err := env.registration.RegisterUser(ctx, RegisterUserCommand{
			TenantID: acme.TenantID,
			Username: "grace2",
			Email:    "grace@acme.test",
			Password: "longenough",
			FullName: "Grace Again",
			Role:     "user",
		})
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("same email allowed in another tenant", func(t *testing.T) {
		other, err := env.registration.RegisterTenant(ctx, RegisterTenantCommand{
			TenantName:    "Globex",
			AdminUsername: "hank",
			AdminEmail:    "hank@globex.test",
			AdminPassword: "longenough",
			AdminFullName: "Hank Scorpio",
		})
		require.NoError(t, err)

		_, err = env.registration.RegisterUser(ctx, RegisterUserCommand{
			TenantID: other.TenantID,
			Username: "grace",
			Email:    "grace@acme.test",
			Password: "longenough",
			FullName: "Grace Hopper",
			Role:     "user",
		})
		require.NoError(t, err)
	})

	t.Run("rejects unknown role name", func(t *testing.T) {
		_, err := env.registration.RegisterUser(ctx, RegisterUserCommand{
			TenantID: acme.TenantID,
			Username: "eve",
			Email:    "eve@acme.test",
			Password: "longenough",
			FullName: "Eve",
			Role:     "superadmin",
		})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "role", verr.Field)
	})

	t.Run("rejects unknown tenant", func(t *testing.T) {
		_, err := env.registration.RegisterUser(ctx, RegisterUserCommand{
			TenantID: "01K00000000000000000000000",
			Username: "ghost",
			Email:    "ghost@acme.test",
			Password: "longenough",
			FullName: "Ghost",
			Role:     "user",
		})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestEnsureRole_Idempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	acme := registerAcme(t, env)

	provisioner := &RoleProvisioner{}
	perms := domain.DefaultPermissions(domain.RoleAdmin)

	// Provisioning again changes nothing.
	err := env.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := provisioner.EnsureRole(ctx, tx, acme.TenantID, domain.RoleAdmin, perms)
		return err
	})
	require.NoError(t, err)

	role, err := env.store.Roles().GetRoleByName(ctx, acme.TenantID, "Admin")
	require.NoError(t, err)
	require.Len(t, role.Permissions, len(perms))
}

func TestDeactivateUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	acme := registerAcme(t, env)

	t.Run("sole active user is protected", func(t *testing.T) {
		err := env.users.DeactivateUser(ctx, DeactivateUserCommand{
			TenantID: acme.TenantID,
			UserID:   acme.AdminUserID,
		})
		require.ErrorIs(t, err, ErrLastActiveUser)

		admin, err := env.store.Users().GetUserByID(ctx, acme.AdminUserID)
		require.NoError(t, err)
		require.True(t, admin.Active)
	})

	graceID, err := env.registration.RegisterUser(ctx, RegisterUserCommand{
		TenantID: acme.TenantID,
		Username: "grace",
		Email:    "grace@acme.test",
		Password: "longenough",
		FullName: "Grace Hopper",
		Role:     "user",
	})
	require.NoError(t, err)

	t.Run("deactivates when another active user remains", func(t *testing.T) {
		require.NoError(t, env.users.DeactivateUser(ctx, DeactivateUserCommand{
			TenantID: acme.TenantID,
			UserID:   graceID,
		}))

		grace, err := env.store.Users().GetUserByID(ctx, graceID)
		require.NoError(t, err)
		require.False(t, grace.Active)
		require.Contains(t, env.dispatcher.names(), domain.EventUserDeactivated)
	})

	t.Run("repeat deactivation is a no-op", func(t *testing.T) {
		require.NoError(t, env.users.DeactivateUser(ctx, DeactivateUserCommand{
			TenantID: acme.TenantID,
			UserID:   graceID,
		}))
	})

	t.Run("cross-tenant deactivation is not found", func(t *testing.T) {
		err := env.users.DeactivateUser(ctx, DeactivateUserCommand{
			TenantID: "01K00000000000000000000000",
			UserID:   acme.AdminUserID,
		})
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
