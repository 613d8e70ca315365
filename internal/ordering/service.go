// Package ordering issues new orders. The order row and its
// stock-validation event are written in the same transaction.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/internal/catalog"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/logger"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/patterns/outbox"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
)

var (
	ErrEmptyOrder          = errors.New("order has no lines")
	ErrInvalidQuantity     = errors.New("line quantity must be positive")
	ErrCustomerUnavailable = errors.New("customer does not exist or is inactive")
	ErrProductUnavailable  = errors.New("product does not exist or is inactive")
)

// Line is one requested product.
type Line struct {
	ProductID string
	Quantity  int
}

type Request struct {
	CustomerID string
	Lines      []Line
}

type Service interface {
	// Issue reserves stock, stores a pending order and queues an
	// OrderIssuedForStockValidation event. Nothing is persisted on error.
	Issue(ctx context.Context, req Request) (*catalog.Order, error)
}

type service struct {
	repo   catalog.Repository
	outbox outbox.Outbox
	tx     persistence.TxManager
	now    func() time.Time
	newID  func() string
}

func newService(repo catalog.Repository, ob outbox.Outbox, tx persistence.TxManager) Service {
	return &service{
		repo:   repo,
		outbox: ob,
		tx:     tx,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *service) Issue(ctx context.Context, req Request) (*catalog.Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyOrder
	}
	if bad, found := lo.Find(req.Lines, func(l Line) bool { return l.Quantity <= 0 }); found {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, bad.ProductID)
	}

	res, err := s.tx.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		if err := s.checkCustomer(txCtx, req.CustomerID); err != nil {
			return nil, err
		}

		order := &catalog.Order{
			ID:         s.newID(),
			Status:     catalog.StatusPending,
			CreatedAt:  s.now().UTC(),
			CustomerID: req.CustomerID,
		}
		for _, line := range req.Lines {
			item, err := s.reserve(txCtx, line)
			if err != nil {
				return nil, err
			}
			order.Items = append(order.Items, item)
			order.TotalCharge += item.Price
		}

		number, err := s.repo.NextOrderNumber(txCtx)
		if err != nil {
			return nil, err
		}
		order.OrderNumber = number

		if err := s.repo.InsertOrder(txCtx, order); err != nil {
			return nil, err
		}
		if err := s.outbox.Add(txCtx, issuedEvent(order)); err != nil {
			return nil, err
		}
		return order, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue order for %s: %w", req.CustomerID, err)
	}

	order := res.(*catalog.Order)
	logger.Get(ctx).Info("order issued",
		zap.String("orderId", order.ID),
		zap.Int("orderNumber", order.OrderNumber),
		zap.Int("totalCharge", order.TotalCharge))
	return order, nil
}

func (s *service) checkCustomer(ctx context.Context, id string) error {
	customer, err := s.repo.GetUser(ctx, id)
	if errors.Is(err, persistence.ErrEntityNotFound) {
		return fmt.Errorf("%w: %s", ErrCustomerUnavailable, id)
	}
	if err != nil {
		return err
	}
	if !customer.IsActive {
		return fmt.Errorf("%w: %s", ErrCustomerUnavailable, id)
	}
	return nil
}

func (s *service) reserve(ctx context.Context, line Line) (catalog.OrderItem, error) {
	product, err := s.repo.GetProduct(ctx, line.ProductID)
	if errors.Is(err, persistence.ErrEntityNotFound) {
		return catalog.OrderItem{}, fmt.Errorf("%w: %s", ErrProductUnavailable, line.ProductID)
	}
	if err != nil {
		return catalog.OrderItem{}, err
	}
	if !product.IsActive {
		return catalog.OrderItem{}, fmt.Errorf("%w: %s", ErrProductUnavailable, line.ProductID)
	}
	if err := s.repo.ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
		return catalog.OrderItem{}, err
	}
	return catalog.OrderItem{
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		Price:     product.Price * line.Quantity,
	}, nil
}

func issuedEvent(o *catalog.Order) *events.OrderIssuedForStockValidation {
	return &events.OrderIssuedForStockValidation{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Items: lo.Map(o.Items, func(it catalog.OrderItem, _ int) events.StockValidationItem {
			return events.StockValidationItem{ProductID: it.ProductID, Quantity: it.Quantity}
		}),
	}
}
