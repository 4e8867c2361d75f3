package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arkestra/identity/internal/identity/service"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/pkg/httpx"
	"github.com/arkestra/identity/pkg/slogx"
)

type UserCreateHandler struct {
	RegistrationService *service.RegistrationService
}

type userCreateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type userCreateResponse struct {
	UserID string `json:"user_id"`
}

// ServeHTTP creates a user inside the caller's tenant. The tenant comes from
// the verified token, never from the request body, so a caller cannot create
// users in someone else's tenant.
func (h *UserCreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	principal := httpx.PrincipalFromContext(ctx)

	var req userCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	userID, err := h.RegistrationService.RegisterUser(ctx, service.RegisterUserCommand{
		TenantID: principal.TenantID,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", verr.Error())
		case errors.Is(err, service.ErrEmailTaken):
			httpx.WriteError(w, http.StatusConflict, "email_taken", "Email is already registered in this tenant")
		default:
			log.Error("user creation failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "User creation failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, userCreateResponse{UserID: userID})
}

type UserDeactivateHandler struct {
	UserService *service.UserService
}

// ServeHTTP soft-deletes a user in the caller's tenant.
func (h *UserDeactivateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	principal := httpx.PrincipalFromContext(ctx)

	userID := r.PathValue("id")
	if userID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "User id is required")
		return
	}

	err := h.UserService.DeactivateUser(ctx, service.DeactivateUserCommand{
		TenantID: principal.TenantID,
		UserID:   userID,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "User not found")
		case errors.Is(err, service.ErrLastActiveUser):
			httpx.WriteError(w, http.StatusConflict, "last_active_user", "The last active user of a tenant cannot be deactivated")
		default:
			log.Error("user deactivation failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Deactivation failed")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
