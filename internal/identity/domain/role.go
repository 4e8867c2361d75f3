package domain

import (
	"fmt"
	"strings"
	"time"
)

// RoleKind is the closed set of role kinds users can carry. Keeping this a
// tagged type instead of free-form strings turns the "Invalid role" runtime
// surprise into an explicit error at the boundary.
type RoleKind string

const (
	RoleAdmin RoleKind = "Admin"
	RoleUser  RoleKind = "User"
)

// ErrUnknownRole reports a role name outside the closed enumeration.
type ErrUnknownRole struct {
	Name string
}

func (e ErrUnknownRole) Error() string {
	return fmt.Sprintf("domain: unknown role %q", e.Name)
}

// ParseRoleKind maps a role name onto the closed enumeration,
// case-insensitively.
func ParseRoleKind(name string) (RoleKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin":
		return RoleAdmin, nil
	case "user", "client":
		return RoleUser, nil
	default:
		return "", ErrUnknownRole{Name: name}
	}
}

// String returns the canonical role name.
func (k RoleKind) String() string { return string(k) }

// PermissionWildcard grants every capability.
const PermissionWildcard = "*"

// Well-known permission strings provisioned at tenant registration.
const (
	PermUsersReadSelf = "users.read-self"
	PermUsersCreate   = "users.create"
	PermUsersDelete   = "users.delete"
	PermUsersUpdate   = "users.update"
	PermTenantsManage = "tenants.manage"
)

// DefaultPermissions maps each role kind to the permission set provisioned
// for it when a tenant is registered.
func DefaultPermissions(kind RoleKind) []string {
	switch kind {
	case RoleAdmin:
		return []string{PermUsersCreate, PermUsersDelete, PermUsersUpdate, PermTenantsManage, PermissionWildcard}
	case RoleUser:
		return []string{PermUsersReadSelf}
	default:
		return nil
	}
}

// Role is a tenant-scoped named permission bundle. (name, tenantID) is
// unique; roles are never global.
type Role struct {
	ID             string
	TenantID       string
	Name           string
	NormalizedName string // uppercased Name
	Description    string
	Permissions    []string // unique within the role
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AddPermission adds a permission with set-union semantics. Returns true if
// the permission was not already present. Comparison is case-insensitive.
func (r *Role) AddPermission(perm string) bool {
	for _, existing := range r.Permissions {
		if strings.EqualFold(existing, perm) {
			return false
		}
	}
	r.Permissions = append(r.Permissions, perm)
	return true
}
