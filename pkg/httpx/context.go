package httpx

import (
	"context"

	"github.com/arkestra/identity/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyClaims ctxKey = "claims"
)

// Principal is the authenticated caller as seen by the HTTP layer, extracted
// from verified access-token claims.
type Principal struct {
	UserID   string
	TenantID string
	Email    string
	Roles    []string
}

// PrincipalFromContext returns the request principal, or a zero Principal
// when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) Principal {
	claims, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	if !ok {
		return Principal{}
	}
	return Principal{
		UserID:   claims.Subject,
		TenantID: claims.TenantID,
		Email:    claims.Email,
		Roles:    claims.Roles,
	}
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}
