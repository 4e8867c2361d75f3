package sqlite

import (
	"context"

	"github.com/arkestra/identity/internal/identity/domain"
)

type tenantsRepo struct {
	db dbtx
}

func (r *tenantsRepo) CreateTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, active, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, boolToInt(t.Active), string(t.Status), t.CreatedAt,
	)
	return mapSQLError(err)
}

func (r *tenantsRepo) GetTenantByID(ctx context.Context, id string) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, active, status, created_at
		FROM tenants WHERE id = ?`, id,
	)
	return scanTenant(row)
}

func (r *tenantsRepo) GetTenantByName(ctx context.Context, name string) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, active, status, created_at
		FROM tenants WHERE name = ?`, name,
	)
	return scanTenant(row)
}

func scanTenant(row rowScanner) (domain.Tenant, error) {
	var t domain.Tenant
	var active int
	var status string

	if err := row.Scan(&t.ID, &t.Name, &active, &status, &t.CreatedAt); err != nil {
		return domain.Tenant{}, mapSQLError(err)
	}
	t.Active = active != 0
	t.Status = domain.TenantStatus(status)
	return t, nil
}
