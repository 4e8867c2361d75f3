package httpx

import (
	"context"
	"net/http"
)

// AuthzFunc decides whether a principal may perform the operation guarded by
// the required permission. A nil return allows; any error denies.
type AuthzFunc func(ctx context.Context, p Principal, required string) error

// RequirePermission gates a route behind a permission. The decision function
// runs on every request; nothing is cached between requests. Unauthenticated
// callers get 401, authenticated callers without the permission get 403.
func RequirePermission(required string, decide AuthzFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p.UserID == "" {
				writeBearerError(w, "missing bearer token")
				return
			}

			if err := decide(r.Context(), p, required); err != nil {
				writeBearerPermissionError(w, required)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RFC 6750-compliant error response for insufficient permissions.
func writeBearerPermissionError(w http.ResponseWriter, required string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+required+`"`)
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("insufficient_scope"))
}
