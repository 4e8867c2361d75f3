package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/internal/identity/uow"
	"github.com/arkestra/identity/pkg/cryptox"
	"github.com/arkestra/identity/pkg/idx"
	"github.com/arkestra/identity/pkg/slogx"
)

// Input bounds enforced before any write is staged.
const (
	maxTenantNameLen = 100
	maxFullNameLen   = 100
	maxUsernameLen   = 64
	minPasswordLen   = 8
)

// RegistrationService creates tenants and users. All multi-step writes run
// through the transaction coordinator so a failure at any step leaves no
// partial tenant behind.
type RegistrationService struct {
	Coordinators *uow.Factory
	Store        store.Store
	Provisioner  *RoleProvisioner
}

// RegisterTenantCommand carries the new tenant and its first admin user.
type RegisterTenantCommand struct {
	TenantName    string
	AdminUsername string
	AdminEmail    string
	AdminPassword string
	AdminFullName string
}

// RegisterTenantResult identifies what registration created.
type RegisterTenantResult struct {
	TenantID    string
	AdminUserID string
}

// RegisterTenant creates a tenant, its admin user and the default Admin and
// User roles with their permission sets, atomically. The tenant.created fact
// is published only after the transaction commits.
func (s *RegistrationService) RegisterTenant(ctx context.Context, cmd RegisterTenantCommand) (RegisterTenantResult, error) {
	l := slogx.FromContext(ctx)

	name := strings.TrimSpace(cmd.TenantName)
	email := strings.TrimSpace(strings.ToLower(cmd.AdminEmail))
	username := strings.TrimSpace(cmd.AdminUsername)
	fullName := strings.TrimSpace(cmd.AdminFullName)

	if err := validateTenantName(name); err != nil {
		return RegisterTenantResult{}, err
	}
	if err := validateEmail(email); err != nil {
		return RegisterTenantResult{}, err
	}
	if err := validateUsername(username); err != nil {
		return RegisterTenantResult{}, err
	}
	if err := validateFullName(fullName); err != nil {
		return RegisterTenantResult{}, err
	}
	if err := validatePassword(cmd.AdminPassword); err != nil {
		return RegisterTenantResult{}, err
	}

	hash, err := cryptox.HashPassword(cmd.AdminPassword)
	if err != nil {
		return RegisterTenantResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	tenant := domain.NewTenant(idx.New().String(), name, now)
	admin, registered := domain.NewUser(idx.New().String(), tenant.ID, username, email, hash, fullName, domain.RoleAdmin, now)

	c := s.Coordinators.New()
	if err := c.Begin(ctx); err != nil {
		return RegisterTenantResult{}, err
	}
	defer c.Rollback()

	c.Stage("create tenant", func(ctx context.Context, tx store.Store) error {
		return tx.Tenants().CreateTenant(ctx, tenant)
	})
	c.Stage("create admin user", func(ctx context.Context, tx store.Store) error {
		return store.ScopeUsers(tx.Users(), tenant.ID).CreateUser(ctx, admin)
	})
	c.Stage("provision default roles", func(ctx context.Context, tx store.Store) error {
		for _, kind := range []domain.RoleKind{domain.RoleAdmin, domain.RoleUser} {
			if _, err := s.Provisioner.EnsureRole(ctx, tx, tenant.ID, kind, domain.DefaultPermissions(kind)); err != nil {
				return err
			}
		}
		return nil
	})

	if _, err := c.Save(ctx); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return RegisterTenantResult{}, ErrTenantExists
		}
		return RegisterTenantResult{}, err
	}

	c.Raise(
		domain.TenantCreated{TenantID: tenant.ID, AdminUserID: admin.ID},
		registered,
	)

	if err := c.Commit(ctx); err != nil {
		return RegisterTenantResult{}, err
	}

	l.Info("tenant registered",
		slog.String("tenant_id", tenant.ID),
		slog.String("admin_user_id", admin.ID),
	)
	return RegisterTenantResult{TenantID: tenant.ID, AdminUserID: admin.ID}, nil
}

// RegisterUserCommand creates an additional user in an existing tenant.
type RegisterUserCommand struct {
	TenantID string
	Username string
	Email    string
	Password string
	FullName string
	Role     string
}

// RegisterUser adds a user to an existing tenant. The same email may exist
// in other tenants; within the tenant it must be free.
func (s *RegistrationService) RegisterUser(ctx context.Context, cmd RegisterUserCommand) (string, error) {
	email := strings.TrimSpace(strings.ToLower(cmd.Email))
	username := strings.TrimSpace(cmd.Username)
	fullName := strings.TrimSpace(cmd.FullName)

	if err := validateEmail(email); err != nil {
		return "", err
	}
	if err := validateUsername(username); err != nil {
		return "", err
	}
	if err := validateFullName(fullName); err != nil {
		return "", err
	}
	if err := validatePassword(cmd.Password); err != nil {
		return "", err
	}

	kind, err := domain.ParseRoleKind(cmd.Role)
	if err != nil {
		return "", validationErr("role", err.Error())
	}

	if _, err := s.Store.Tenants().GetTenantByID(ctx, cmd.TenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", validationErr("tenantId", "tenant does not exist")
		}
		return "", err
	}

	// Friendlier than the unique-index violation, though the index still
	// backstops a concurrent registration.
	if _, err := s.Store.Users().GetUserByEmail(ctx, cmd.TenantID, email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	hash, err := cryptox.HashPassword(cmd.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user, registered := domain.NewUser(idx.New().String(), cmd.TenantID, username, email, hash, fullName, kind, time.Now().UTC())

	c := s.Coordinators.New()
	if err := c.Begin(ctx); err != nil {
		return "", err
	}
	defer c.Rollback()

	c.Stage("create user", func(ctx context.Context, tx store.Store) error {
		return store.ScopeUsers(tx.Users(), cmd.TenantID).CreateUser(ctx, user)
	})

	if _, err := c.Save(ctx); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", ErrEmailTaken
		}
		return "", err
	}

	c.Raise(registered)

	if err := c.Commit(ctx); err != nil {
		return "", err
	}
	return user.ID, nil
}

func validateTenantName(name string) error {
	if name == "" {
		return validationErr("tenantName", "required")
	}
	if len(name) > maxTenantNameLen {
		return validationErr("tenantName", fmt.Sprintf("must be at most %d characters", maxTenantNameLen))
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return validationErr("email", "required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return validationErr("email", "must be a valid email address")
	}
	return nil
}

func validateUsername(username string) error {
	if username == "" {
		return validationErr("username", "required")
	}
	if len(username) > maxUsernameLen {
		return validationErr("username", fmt.Sprintf("must be at most %d characters", maxUsernameLen))
	}
	return nil
}

func validateFullName(fullName string) error {
	if fullName == "" {
		return validationErr("fullName", "required")
	}
	if len(fullName) > maxFullNameLen {
		return validationErr("fullName", fmt.Sprintf("must be at most %d characters", maxFullNameLen))
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return validationErr("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	return nil
}
