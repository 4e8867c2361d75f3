package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/service"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/pkg/httpx"
	"github.com/arkestra/identity/pkg/jwtx"
	"github.com/arkestra/identity/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	RegistrationService *service.RegistrationService
	UserService         *service.UserService
	SessionService      *service.SessionService
	AuthzService        *service.AuthzService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTenants()
	r.registerUsers()
	r.registerSessions()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// decide adapts the authorization service to the middleware's principal type.
func (r *Router) decide(ctx context.Context, p httpx.Principal, required string) error {
	return r.AuthzService.Decide(ctx, service.Principal{
		UserID:   p.UserID,
		TenantID: p.TenantID,
		Email:    p.Email,
		Roles:    p.Roles,
	}, required)
}

func (r *Router) registerTenants() {
	h := &TenantRegisterHandler{RegistrationService: r.RegistrationService}

	// Public signup endpoint, strict limit against abuse.
	r.Mux.Handle("POST /v1/tenants/register",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	createHandler := &UserCreateHandler{RegistrationService: r.RegistrationService}
	r.Mux.Handle("POST /v1/users",
		httpx.Chain(createHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequirePermission(domain.PermUsersCreate, r.decide),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	deactivateHandler := &UserDeactivateHandler{UserService: r.UserService}
	r.Mux.Handle("DELETE /v1/users/{id}",
		httpx.Chain(deactivateHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequirePermission(domain.PermUsersDelete, r.decide),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSessions() {
	loginHandler := &LoginHandler{SessionService: r.SessionService}
	r.Mux.Handle("POST /v1/session/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	refreshHandler := &RefreshHandler{SessionService: r.SessionService}
	r.Mux.Handle("POST /v1/session/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	logoutHandler := &LogoutHandler{SessionService: r.SessionService}
	r.Mux.Handle("POST /v1/session/logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store))
}
