package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/pkg/slogx"
)

// ErrNotImplemented marks a workflow branch that exists but has no behaviour
// yet. It must surface loudly in logs, never be silently swallowed.
var ErrNotImplemented = errors.New("events: handler not implemented")

// RegisterDefaults wires the built-in handlers.
func RegisterDefaults(r *Registry) {
	r.Register(domain.EventTenantCreated, WelcomeNotificationHandler)
	r.Register(domain.EventUserRegistered, UserRegisteredAuditHandler)
	r.Register(domain.EventUserDeactivated, UserDeactivatedAuditHandler)
}

// WelcomeNotificationHandler will send the tenant admin a welcome mail once
// a mail transport exists. Until then it reports ErrNotImplemented so the
// unfinished branch shows up in logs instead of passing silently.
func WelcomeNotificationHandler(ctx context.Context, evt domain.Event) error {
	created, ok := evt.(domain.TenantCreated)
	if !ok {
		return fmt.Errorf("events: unexpected event type %T", evt)
	}
	return fmt.Errorf("%w: welcome notification for tenant %s", ErrNotImplemented, created.TenantID)
}

// UserRegisteredAuditHandler records the registration in the audit log.
func UserRegisteredAuditHandler(ctx context.Context, evt domain.Event) error {
	registered, ok := evt.(domain.UserRegistered)
	if !ok {
		return fmt.Errorf("events: unexpected event type %T", evt)
	}
	slogx.FromContext(ctx).Info("user registered",
		slog.String("user_id", registered.UserID),
		slog.String("tenant_id", registered.TenantID),
	)
	return nil
}

// UserDeactivatedAuditHandler records the deactivation in the audit log.
func UserDeactivatedAuditHandler(ctx context.Context, evt domain.Event) error {
	deactivated, ok := evt.(domain.UserDeactivated)
	if !ok {
		return fmt.Errorf("events: unexpected event type %T", evt)
	}
	slogx.FromContext(ctx).Info("user deactivated",
		slog.String("user_id", deactivated.UserID),
		slog.String("tenant_id", deactivated.TenantID),
	)
	return nil
}
