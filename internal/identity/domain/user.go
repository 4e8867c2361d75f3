package domain

import "time"

// User belongs to exactly one tenant. The tenant reference is immutable after
// creation. Users are deactivated, never physically removed.
type User struct {
	ID           string
	TenantID     string
	Username     string
	Email        string // unique per tenant
	PasswordHash string // argon2id encoded, never logged
	FullName     string
	Role         RoleKind
	Active       bool
	CreatedAt    time.Time
}

// NewUser constructs an active user and returns the registration fact.
func NewUser(id, tenantID, username, email, passwordHash, fullName string, role RoleKind, now time.Time) (User, Event) {
	u := User{
		ID:           id,
		TenantID:     tenantID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
	}
	return u, UserRegistered{UserID: id, TenantID: tenantID}
}

// Deactivate soft-deletes the user and returns the deactivation fact.
// The row stays queryable for audit and token-revocation history.
func (u *User) Deactivate() Event {
	u.Active = false
	return UserDeactivated{UserID: u.ID, TenantID: u.TenantID}
}
