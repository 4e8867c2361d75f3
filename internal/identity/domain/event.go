package domain

// Event is an immutable fact describing something that happened to an
// aggregate. Events carry identifiers only, never entity references, so
// handlers must reload state and stay idempotent (dispatch is at-least-once,
// post-commit).
type Event interface {
	// Name is the stable event name handlers register against.
	Name() string
}

// Event names.
const (
	EventTenantCreated   = "tenant.created"
	EventUserRegistered  = "user.registered"
	EventUserDeactivated = "user.deactivated"
)

// TenantCreated is raised once per registration workflow, after the tenant
// and its admin user have been persisted.
type TenantCreated struct {
	TenantID    string
	AdminUserID string
}

func (TenantCreated) Name() string { return EventTenantCreated }

// UserRegistered is raised when a user is created inside an existing tenant.
type UserRegistered struct {
	UserID   string
	TenantID string
}

func (UserRegistered) Name() string { return EventUserRegistered }

// UserDeactivated is raised when a user is soft-deleted.
type UserDeactivated struct {
	UserID   string
	TenantID string
}

func (UserDeactivated) Name() string { return EventUserDeactivated }
