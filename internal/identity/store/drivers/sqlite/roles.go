package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/pkg/idx"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO roles (id, tenant_id, name, normalized_name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		role.ID, role.TenantID, role.Name, role.NormalizedName,
		role.Description, role.CreatedAt, role.UpdatedAt,
	)
	if err != nil {
		return mapSQLError(err)
	}

	for _, perm := range role.Permissions {
		if err := r.AddRolePermission(ctx, role.ID, perm); err != nil {
			return err
		}
	}
	return nil
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, tenantID, name string) (domain.Role, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, normalized_name, description, created_at, updated_at
		FROM roles WHERE tenant_id = ? AND name = ?`,
		tenantID, name,
	)

	var role domain.Role
	err := row.Scan(
		&role.ID, &role.TenantID, &role.Name, &role.NormalizedName,
		&role.Description, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return domain.Role{}, mapSQLError(err)
	}

	perms, err := r.listPermissions(ctx, role.ID)
	if err != nil {
		return domain.Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func (r *rolesRepo) AddRolePermission(ctx context.Context, roleID, permission string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO role_permissions (id, role_id, permission)
		VALUES (?, ?, ?)`,
		idx.New().String(), roleID, permission,
	)
	err = mapSQLError(err)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil // idempotent add
	}
	return err
}

func (r *rolesRepo) TouchRole(ctx context.Context, roleID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE roles SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), roleID,
	)
	return mapSQLError(err)
}

func (r *rolesRepo) listPermissions(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT permission FROM role_permissions WHERE role_id = ? ORDER BY permission`,
		roleID,
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, mapSQLError(err)
		}
		perms = append(perms, p)
	}
	return perms, mapSQLError(rows.Err())
}
