package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/internal/identity/uow"
	"github.com/arkestra/identity/pkg/slogx"
)

// UserService covers user lifecycle commands past registration.
type UserService struct {
	Coordinators *uow.Factory
}

// DeactivateUserCommand soft-deletes a user within their tenant.
type DeactivateUserCommand struct {
	TenantID string
	UserID   string
}

// DeactivateUser marks the user inactive. The row is kept for audit and
// token history. A tenant's sole remaining active user cannot be
// deactivated, otherwise the tenant would be permanently locked out. The
// count check and the flag flip share one transaction so a concurrent
// deactivation cannot slip past the guard.
func (s *UserService) DeactivateUser(ctx context.Context, cmd DeactivateUserCommand) error {
	c := s.Coordinators.New()
	if err := c.Begin(ctx); err != nil {
		return err
	}
	defer c.Rollback()

	var evt domain.Event
	c.Stage("deactivate user", func(ctx context.Context, tx store.Store) error {
		scoped := store.ScopeUsers(tx.Users(), cmd.TenantID)

		user, err := scoped.GetUserByID(ctx, cmd.UserID)
		if err != nil {
			return fmt.Errorf("lookup user: %w", err)
		}
		if !user.Active {
			// Repeat deactivation is a no-op.
			return nil
		}

		active, err := scoped.CountActiveUsers(ctx, cmd.TenantID)
		if err != nil {
			return fmt.Errorf("count active users: %w", err)
		}
		if active <= 1 {
			return ErrLastActiveUser
		}

		evt = user.Deactivate()
		return scoped.SetUserActive(ctx, user.ID, false)
	})

	if _, err := c.Save(ctx); err != nil {
		return err
	}

	if evt != nil {
		c.Raise(evt)
	}
	if err := c.Commit(ctx); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user deactivated",
		slog.String("user_id", cmd.UserID),
		slog.String("tenant_id", cmd.TenantID),
	)
	return nil
}
