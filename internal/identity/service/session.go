package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/pkg/cryptox"
	"github.com/arkestra/identity/pkg/idx"
	"github.com/arkestra/identity/pkg/jwtx"
	"github.com/arkestra/identity/pkg/slogx"
)

// SessionService owns the credential lifecycle: password login, HS256 access
// tokens, and opaque single-use refresh tokens. The signing key lives inside
// the injected Signer/Verifier and is immutable after construction.
type SessionService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Store    store.Store

	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// LoginCommand authenticates a user by email within a tenant.
type LoginCommand struct {
	TenantID string
	Email    string
	Password string
}

// Login verifies the password of an active user and issues a token pair.
// Unknown email, wrong password and deactivated user all collapse into
// ErrInvalidCredential so the response leaks nothing about which it was.
func (s *SessionService) Login(ctx context.Context, cmd LoginCommand) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	email := strings.TrimSpace(strings.ToLower(cmd.Email))

	user, err := s.Store.Users().GetUserByEmail(ctx, cmd.TenantID, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidCredential
		}
		return domain.TokenPair{}, err
	}
	if !user.Active {
		l.Info("login rejected for deactivated user", slog.String("user_id", user.ID))
		return domain.TokenPair{}, ErrInvalidCredential
	}
	if err := cryptox.VerifyPassword(cmd.Password, user.PasswordHash); err != nil {
		l.Info("login password verification failed", slog.String("user_id", user.ID))
		return domain.TokenPair{}, ErrInvalidCredential
	}

	return s.GenerateTokens(ctx, user)
}

// IssueAccessToken signs an HS256 access token for the user. The token
// carries subject, email, tenant and role claims with the configured fixed
// lifetime.
func (s *SessionService) IssueAccessToken(user domain.User) (string, error) {
	claims := jwtx.NewAccessClaims(
		user.ID,
		user.Email,
		user.TenantID,
		[]string{user.Role.String()},
		s.AccessTTL,
		s.Issuer,
		s.Audience,
		time.Now().UTC(),
	)
	return s.Signer.Sign(claims)
}

// ValidateAccessToken verifies signature, issuer, audience and lifetime with
// zero clock-skew leeway. Any failure returns ok=false; callers never learn
// which check failed.
func (s *SessionService) ValidateAccessToken(token string) (jwtx.Claims, bool) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, false
	}
	return claims, true
}

// IssueRefreshToken mints an opaque refresh token of 64 random bytes and
// stores its SHA-256 fingerprint. The raw value is returned exactly once and
// never persisted.
func (s *SessionService) IssueRefreshToken(ctx context.Context, user domain.User) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize512)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	record := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, record); err != nil {
		return "", err
	}
	return raw, nil
}

// ValidateRefreshToken checks the presented token and consumes it. The
// used-flag flip happens in the same transaction as the check with a guarded
// update, so two concurrent validations of the same token cannot both win.
// Unknown, revoked, already-used and expired tokens all return
// ErrInvalidCredential.
func (s *SessionService) ValidateRefreshToken(ctx context.Context, raw string) (domain.User, error) {
	hash := cryptox.FingerprintToken(strings.TrimSpace(raw))
	now := time.Now().UTC()

	var user domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		record, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidCredential
			}
			return err
		}
		if record.Revoked || record.Used || now.After(record.ExpiresAt) {
			return ErrInvalidCredential
		}

		consumed, err := tx.RefreshTokens().ConsumeRefreshToken(ctx, hash)
		if err != nil {
			return err
		}
		if !consumed {
			// A concurrent validation got here first.
			return ErrInvalidCredential
		}

		user, err = tx.Users().GetUserByID(ctx, record.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidCredential
			}
			return err
		}
		if !user.Active {
			return ErrInvalidCredential
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// InvalidateRefreshToken revokes the token. Revoking a token that does not
// exist or is already revoked is a no-op, so logout is idempotent.
func (s *SessionService) InvalidateRefreshToken(ctx context.Context, raw string) error {
	hash := cryptox.FingerprintToken(strings.TrimSpace(raw))
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, hash)
}

// GenerateTokens issues a fresh access/refresh pair for the user.
func (s *SessionService) GenerateTokens(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	access, err := s.IssueAccessToken(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(ctx, user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Refresh rotates a refresh token: the presented token is validated and
// consumed, then a brand new pair is issued. The old token can never be
// replayed afterwards.
func (s *SessionService) Refresh(ctx context.Context, raw string) (domain.TokenPair, error) {
	user, err := s.ValidateRefreshToken(ctx, raw)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return s.GenerateTokens(ctx, user)
}
