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

// OrderCancelledByInsufficientStock puts the order's quantities back in stock
// and cancels it. An order that is already cancelled is not touched again.
func (h *Handlers) OrderCancelledByInsufficientStock(ctx context.Context, e *events.OrderCancelledByInsufficientStock) consumer.Result {
	if err := requireID(e, "orderId", e.OrderID); err != nil {
		return consumer.Fatal(err)
	}
	return h.process(ctx, e, sourceInventory, func(txCtx context.Context) error {
		log := logger.Get(ctx).With(zap.String("orderId", e.OrderID), zap.Int("orderNumber", e.OrderNumber))

		order, err := h.repo.GetOrder(txCtx, e.OrderID)
		if errors.Is(err, persistence.ErrEntityNotFound) {
			log.Warn("cancelled order not found")
			return nil
		}
		if err != nil {
			return err
		}
		if order.Cancelled() {
			log.Info("order already cancelled")
			return nil
		}

		for _, item := range order.Items {
			err := h.repo.RestoreStock(txCtx, item.ProductID, item.Quantity)
			if errors.Is(err, persistence.ErrEntityNotFound) {
				log.Warn("product of cancelled order not found", zap.String("productId", item.ProductID))
				continue
			}
			if err != nil {
				return err
			}
		}

		if err := h.repo.UpdateOrderStatus(txCtx, order.ID, catalog.StatusCancelled); err != nil {
			return err
		}
		log.Info("order cancelled for insufficient stock", zap.String("reason", e.Reason))
		return nil
	})
}
