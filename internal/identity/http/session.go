package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/service"
	"github.com/arkestra/identity/pkg/httpx"
	"github.com/arkestra/identity/pkg/slogx"
)

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

func newTokenPairResponse(pair domain.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
	}
}

type LoginHandler struct {
	SessionService *service.SessionService
}

type loginRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}
	if req.TenantID == "" || req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "tenant_id, email and password are required")
		return
	}

	pair, err := h.SessionService.Login(ctx, service.LoginCommand{
		TenantID: req.TenantID,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredential) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "Invalid credentials")
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Login failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newTokenPairResponse(pair))
}

type RefreshHandler struct {
	SessionService *service.SessionService
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	pair, err := h.SessionService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredential) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "Refresh token is invalid, expired or already used")
			return
		}
		log.Error("refresh failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Refresh failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newTokenPairResponse(pair))
}

type LogoutHandler struct {
	SessionService *service.SessionService
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ServeHTTP revokes the presented refresh token. Revoking an unknown or
// already-revoked token still reports success; logout is idempotent.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	if err := h.SessionService.InvalidateRefreshToken(ctx, req.RefreshToken); err != nil {
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
