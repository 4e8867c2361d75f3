package domain

import "time"

// TenantStatus is the lifecycle status of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant is an isolated customer boundary. Users, roles and permissions are
// scoped to exactly one tenant. Tenants are never hard-deleted.
type Tenant struct {
	ID        string
	Name      string // unique across the system, max 100 chars
	Active    bool
	Status    TenantStatus
	CreatedAt time.Time
}

// NewTenant constructs an active tenant. The TenantCreated fact is raised by
// the registration workflow once the admin user id is known, and handed to
// the transaction coordinator explicitly rather than queued on the entity.
func NewTenant(id, name string, now time.Time) Tenant {
	return Tenant{
		ID:        id,
		Name:      name,
		Active:    true,
		Status:    TenantStatusActive,
		CreatedAt: now,
	}
}
