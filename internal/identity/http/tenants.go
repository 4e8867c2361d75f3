package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arkestra/identity/internal/identity/service"
	"github.com/arkestra/identity/pkg/httpx"
	"github.com/arkestra/identity/pkg/slogx"
)

type TenantRegisterHandler struct {
	RegistrationService *service.RegistrationService
}

type tenantRegisterRequest struct {
	TenantName    string `json:"tenant_name"`
	AdminUsername string `json:"admin_username"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
	AdminFullName string `json:"admin_full_name"`
}

type tenantRegisterResponse struct {
	TenantID    string `json:"tenant_id"`
	AdminUserID string `json:"admin_user_id"`
}

func (h *TenantRegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tenantRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	result, err := h.RegistrationService.RegisterTenant(ctx, service.RegisterTenantCommand{
		TenantName:    req.TenantName,
		AdminUsername: req.AdminUsername,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
		AdminFullName: req.AdminFullName,
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", verr.Error())
		case errors.Is(err, service.ErrTenantExists):
			httpx.WriteError(w, http.StatusConflict, "tenant_exists", "Tenant name is already taken")
		default:
			log.Error("tenant registration failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Registration failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tenantRegisterResponse{
		TenantID:    result.TenantID,
		AdminUserID: result.AdminUserID,
	})
}
