package sqlite

import (
	"context"
	"time"

	"github.com/arkestra/identity/internal/identity/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt,
		boolToInt(t.Revoked), boolToInt(t.Used), t.CreatedAt, t.CreatedAt,
	)
	return mapSQLError(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked, used, created_at, updated_at
		FROM refresh_tokens WHERE token_hash = ?`, hash,
	)

	var t domain.RefreshToken
	var revoked, used int
	err := row.Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt,
		&revoked, &used, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapSQLError(err)
	}
	t.Revoked = revoked != 0
	t.Used = used != 0
	return t, nil
}

// ConsumeRefreshToken is the single-use guard: the WHERE clause only matches
// a token that is still fresh, so two racing validations cannot both win.
func (r *refreshTokensRepo) ConsumeRefreshToken(ctx context.Context, hash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET used = 1, updated_at = ?
		WHERE token_hash = ? AND used = 0 AND revoked = 0`,
		time.Now().UTC(), hash,
	)
	if err != nil {
		return false, mapSQLError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapSQLError(err)
	}
	return n == 1, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1, updated_at = ?
		WHERE token_hash = ?`,
		time.Now().UTC(), hash,
	)
	return mapSQLError(err)
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < ?`,
		time.Now().UTC(),
	)
	return mapSQLError(err)
}
