// Package handlers applies the integration events of the users, products and
// inventory services to the local catalog. Every effect runs through the
// idempotency guard, so a redelivered event changes nothing.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sokol111/ecommerce-orders-messaging/internal/catalog"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/patterns/idempotency"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/consumer"
)

const (
	sourceUsers     = "users-service"
	sourceProducts  = "products-service"
	sourceInventory = "inventory-service"
)

// errInvalidEvent marks an event that can never be applied, however often it is retried.
var errInvalidEvent = errors.New("invalid event")

type Handlers struct {
	guard idempotency.Guard
	repo  catalog.Repository
}

func newHandlers(guard idempotency.Guard, repo catalog.Repository) *Handlers {
	return &Handlers{guard: guard, repo: repo}
}

func register(r *consumer.Registry, h *Handlers) {
	consumer.Handle(r, events.TypeUserCreated, h.UserCreated)
	consumer.Handle(r, events.TypeUserUpdated, h.UserUpdated)
	consumer.Handle(r, events.TypeUserDeleted, h.UserDeleted)
	consumer.Handle(r, events.TypeProductCreated, h.ProductCreated)
	consumer.Handle(r, events.TypeProductUpdated, h.ProductUpdated)
	consumer.Handle(r, events.TypeProductDeleted, h.ProductDeleted)
	consumer.Handle(r, events.TypeOrderCancelledByInsufficientStock, h.OrderCancelledByInsufficientStock)
}

// process runs apply at most once for e and maps the outcome to a consumer result.
func (h *Handlers) process(ctx context.Context, e events.Event, source string, apply func(txCtx context.Context) error) consumer.Result {
	_, err := h.guard.Process(ctx, e, source, apply)
	switch {
	case err == nil:
		return consumer.Success
	case errors.Is(err, idempotency.ErrMissingEventID), errors.Is(err, errInvalidEvent):
		return consumer.Fatal(err)
	default:
		return consumer.Retry(fmt.Errorf("%w: %s %s: %w", messaging.ErrHandlerFailure, e.EventType(), e.GetMetadata().EventID, err))
	}
}

func requireID(e events.Event, field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s %s has no %s", errInvalidEvent, e.EventType(), e.GetMetadata().EventID, field)
	}
	return nil
}
