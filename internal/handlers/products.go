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

// ProductCreated stores a new active product. A product that already exists is left as is.
func (h *Handlers) ProductCreated(ctx context.Context, e *events.ProductCreated) consumer.Result {
	if err := requireID(e, "productId", e.ProductID); err != nil {
		return consumer.Fatal(err)
	}
	return h.process(ctx, e, sourceProducts, func(txCtx context.Context) error {
		_, err := h.repo.GetProduct(txCtx, e.ProductID)
		if err == nil {
			logger.Get(ctx).Info("product already exists", zap.String("productId", e.ProductID))
			return nil
		}
		if !errors.Is(err, persistence.ErrEntityNotFound) {
			return err
		}
		return h.repo.InsertProduct(txCtx, &catalog.Product{
			ID:       e.ProductID,
			Name:     e.Name,
			Price:    e.Price,
			Stock:    e.Stock,
			IsActive: true,
		})
	})
}

// ProductUpdated overwrites name, price and stock, creating the product when it was never seen.
func (h *Handlers) ProductUpdated(ctx context.Context, e *events.ProductUpdated) consumer.Result {
	if err := requireID(e, "productId", e.ProductID); err != nil {
		return consumer.Fatal(err)
	}
	return h.process(ctx, e, sourceProducts, func(txCtx context.Context) error {
		return h.repo.UpsertProduct(txCtx, &catalog.Product{
			ID:    e.ProductID,
			Name:  e.Name,
			Price: e.Price,
			Stock: e.Stock,
		})
	})
}

func (h *Handlers) ProductDeleted(ctx context.Context, e *events.ProductDeleted) consumer.Result {
	if err := requireID(e, "productId", e.ProductID); err != nil {
		return consumer.Fatal(err)
	}
	return h.process(ctx, e, sourceProducts, func(txCtx context.Context) error {
		err := h.repo.DeactivateProduct(txCtx, e.ProductID)
		if errors.Is(err, persistence.ErrEntityNotFound) {
			logger.Get(ctx).Warn("deleted product not found", zap.String("productId", e.ProductID))
			return nil
		}
		return err
	})
}
