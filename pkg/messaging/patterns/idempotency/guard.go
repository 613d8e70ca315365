package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/logger"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
)

// ErrMissingEventID is returned for an event that cannot be deduplicated.
var ErrMissingEventID = errors.New("event has no id")

// Guard applies an event's effect at most once.
type Guard interface {
	// Process runs apply and records e as processed by source, in one
	// transaction. It reports false without running apply when e was
	// already processed.
	Process(ctx context.Context, e events.Event, source string, apply func(txCtx context.Context) error) (bool, error)
}

type guard struct {
	store Store
	tx    persistence.TxManager
	now   func() time.Time
}

func newGuard(store Store, tx persistence.TxManager) Guard {
	return &guard{store: store, tx: tx, now: time.Now}
}

func (g *guard) Process(ctx context.Context, e events.Event, source string, apply func(txCtx context.Context) error) (bool, error) {
	eventID, eventType := e.GetMetadata().EventID, e.EventType()
	if eventID == "" {
		return false, fmt.Errorf("%w: %s", ErrMissingEventID, eventType)
	}
	ctx = logger.WithFields(ctx, zap.String("eventId", eventID), zap.String("source", source))

	res, err := g.tx.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		seen, err := g.store.Exists(txCtx, eventID, eventType)
		if err != nil {
			return false, err
		}
		if seen {
			return false, nil
		}
		if err := apply(txCtx); err != nil {
			return false, err
		}
		err = g.store.Insert(txCtx, ProcessedEvent{
			EventID:       eventID,
			EventType:     eventType,
			ProcessedAt:   g.now().UTC(),
			SourceService: source,
		})
		if err != nil {
			return false, err
		}
		return true, nil
	})

	// A concurrent delivery of the same event committed first.
	if errors.Is(err, ErrAlreadyProcessed) {
		logger.Get(ctx).Info("event processed concurrently, skipping", zap.String("eventType", eventType))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	applied, _ := res.(bool)
	if !applied {
		logger.Get(ctx).Info("event already processed, skipping", zap.String("eventType", eventType))
	}
	return applied, nil
}
