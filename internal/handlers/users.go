package handlers

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/internal/catalog"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/logger"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/consumer"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
)

// UserCreated stores a new active user. A user that already exists is left as is.
func (h *Handlers) UserCreated(ctx context.Context, e *events.UserCreated) consumer.Result {
	if err := requireID(e, "userId", e.UserID); err != nil {
		return consumer.Fatal(err)
	}
	return h.process(ctx, e, sourceUsers, func(txCtx context.Context) error {
		_, err := h.repo.GetUser(txCtx, e.UserID)
		if err == nil {
			logger.Get(ctx).Info("user already exists", zap.String("userId", e.UserID))
			return nil
		}
		if !errors.Is(err, persistence.ErrEntityNotFound) {
			return err
		}
		return h.repo.InsertUser(txCtx, &catalog.User{
			ID:        e.UserID,
			Name:      e.Name,
			LastNames: e.LastNames,
			Address:   e.Address,
			Email:     e.Email,
			IsActive:  true,
		})
	})
}

// UserUpdated overwrites the user's profile, creating the user when it was never seen.
func (h *Handlers) UserUpdated(ctx context.Context, e *events.UserUpdated) consumer.Result {
	if err := requireID(e, "userId", e.UserID); err != nil {
		return consumer.Fatal(err)
	}
	return h.process(ctx, e, sourceUsers, func(txCtx context.Context) error {
		return h.repo.UpsertUser(txCtx, &catalog.User{
			ID:        e.UserID,
			Name:      e.Name,
			LastNames: e.LastNames,
			Address:   e.Address,
			Email:     e.Email,
		})
	})
}

// UserDeleted deactivates the user.
func (h *Handlers) UserDeleted(ctx context.Context, e *events.UserDeleted) consumer.Result {
	if err := requireID(e, "userId", e.UserID); err != nil {
		return consumer.Fatal(err)
	}
	return h.process(ctx, e, sourceUsers, func(txCtx context.Context) error {
		err := h.repo.DeactivateUser(txCtx, e.UserID)
		if errors.Is(err, persistence.ErrEntityNotFound) {
			logger.Get(ctx).Warn("deleted user not found", zap.String("userId", e.UserID))
			return nil
		}
		return err
	})
}
