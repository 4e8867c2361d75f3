package sqlite

import (
	"context"

	"github.com/arkestra/identity/internal/identity/domain"
)

// rowScanner lets the scan helpers work on both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type usersRepo struct {
	db dbtx
}

const userColumns = `id, tenant_id, username, email, password_hash, full_name, role, active, created_at`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.TenantID, u.Username, u.Email, u.PasswordHash,
		u.FullName, u.Role.String(), boolToInt(u.Active), u.CreatedAt,
	)
	return mapSQLError(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, tenantID, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE tenant_id = ? AND email = ?`,
		tenantID, email,
	)
	return scanUser(row)
}

func (r *usersRepo) SetUserActive(ctx context.Context, userID string, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET active = ? WHERE id = ?`,
		boolToInt(active), userID,
	)
	return mapSQLError(err)
}

func (r *usersRepo) CountActiveUsers(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE tenant_id = ? AND active = 1`,
		tenantID,
	).Scan(&n)
	if err != nil {
		return 0, mapSQLError(err)
	}
	return n, nil
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var role string
	var active int

	err := row.Scan(
		&u.ID, &u.TenantID, &u.Username, &u.Email, &u.PasswordHash,
		&u.FullName, &role, &active, &u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, mapSQLError(err)
	}
	u.Role = domain.RoleKind(role)
	u.Active = active != 0
	return u, nil
}
