package store

import (
	"context"
	"errors"

	"github.com/arkestra/identity/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is the store's optimistic-concurrency/deadlock signal.
	// The transaction coordinator's retry policy keys off this error;
	// drivers map their engine-specific busy/deadlock failures onto it.
	ErrConflict = errors.New("store: concurrency conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. Sub-repositories keep concerns tidy and testable.
//
// Transaction demarcation is owned by the transaction coordinator: services
// never call Tx/Commit/Rollback directly.
type Store interface {
	Tenants() Tenants
	Users() Users
	Roles() Roles
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Tenants interface {
	// CreateTenant inserts a new tenant (id is provided by app via ULID).
	CreateTenant(ctx context.Context, t domain.Tenant) error

	// GetTenantByID returns a tenant by id.
	GetTenantByID(ctx context.Context, id string) (domain.Tenant, error)

	// GetTenantByName returns a tenant by its unique name.
	GetTenantByName(ctx context.Context, name string) (domain.Tenant, error)
}

type Users interface {
	// CreateUser inserts a new user. Fails with ErrAlreadyExists when the
	// (email, tenant_id) pair is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail returns a user by email within a tenant.
	GetUserByEmail(ctx context.Context, tenantID, email string) (domain.User, error)

	// SetUserActive flips the active flag and bumps nothing else; rows are
	// never physically removed.
	SetUserActive(ctx context.Context, userID string, active bool) error

	// CountActiveUsers returns the number of active users in a tenant.
	CountActiveUsers(ctx context.Context, tenantID string) (int, error)
}

type Roles interface {
	// CreateRole inserts a new role (id is ULID).
	CreateRole(ctx context.Context, r domain.Role) error

	// GetRoleByName fetches a role with its permissions by (name, tenant).
	GetRoleByName(ctx context.Context, tenantID, name string) (domain.Role, error)

	// AddRolePermission adds a permission entry if not already present
	// (idempotent; set-union semantics).
	AddRolePermission(ctx context.Context, roleID, permission string) error

	// TouchRole bumps the role's updated_at.
	TouchRole(ctx context.Context, roleID string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its SHA-256 fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// ConsumeRefreshToken marks the token used, guarded so only a token that
	// is neither used nor revoked can be consumed. Returns false when the
	// guard fails (a concurrent validation won the race).
	ConsumeRefreshToken(ctx context.Context, hash string) (bool, error)

	// RevokeRefreshToken flips revoked=1; no-op if the row does not exist.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}
