package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/pkg/idx"
)

// RoleProvisioner creates or tops up tenant-scoped roles. EnsureRole is
// idempotent: running it again with the same inputs leaves the role and its
// permission set unchanged.
type RoleProvisioner struct{}

// EnsureRole looks up the role for kind within the tenant, creates it when
// absent, and union-adds any missing permissions. Every failure surfaces to
// the caller so the enclosing transaction can abort; a tenant must never end
// up half-provisioned with a silently missing role.
func (p *RoleProvisioner) EnsureRole(ctx context.Context, tx store.Store, tenantID string, kind domain.RoleKind, permissions []string) (domain.Role, error) {
	name := string(kind)

	role, err := tx.Roles().GetRoleByName(ctx, tenantID, name)
	switch {
	case err == nil:
		// exists, top up below
	case errors.Is(err, store.ErrNotFound):
		now := time.Now().UTC()
		role = domain.Role{
			ID:             idx.New().String(),
			TenantID:       tenantID,
			Name:           name,
			NormalizedName: strings.ToUpper(name),
			Description:    fmt.Sprintf("Default %s role", name),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Roles().CreateRole(ctx, role); err != nil {
			return domain.Role{}, fmt.Errorf("create role %q: %w", name, err)
		}
	default:
		return domain.Role{}, fmt.Errorf("lookup role %q: %w", name, err)
	}

	changed := false
	for _, perm := range permissions {
		if !role.AddPermission(perm) {
			continue
		}
		changed = true
		if err := tx.Roles().AddRolePermission(ctx, role.ID, perm); err != nil {
			return domain.Role{}, fmt.Errorf("add permission %q to role %q: %w", perm, name, err)
		}
	}
	if changed {
		if err := tx.Roles().TouchRole(ctx, role.ID); err != nil {
			return domain.Role{}, fmt.Errorf("touch role %q: %w", name, err)
		}
	}

	return role, nil
}
