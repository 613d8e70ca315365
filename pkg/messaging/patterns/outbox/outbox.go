package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/logger"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/tracing"
)

// Outbox records events for publication after the surrounding transaction commits.
type Outbox interface {
	// Add stamps the metadata of e (id, type, occurredAt) where missing and
	// appends it to the outbox. ctx must carry a transaction.
	Add(ctx context.Context, e events.Event) error
}

type outbox struct {
	store Store
	now   func() time.Time
	newID func() string
}

func newOutbox(store Store) Outbox {
	return &outbox{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (o *outbox) Add(ctx context.Context, e events.Event) error {
	now := o.now().UTC()
	md := e.GetMetadata()
	md.EventID = lo.CoalesceOrEmpty(md.EventID, o.newID())
	md.EventType = e.EventType()
	if md.OccurredAt.IsZero() {
		md.OccurredAt = now
	}

	payload, err := events.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize outbox event: %w", err)
	}

	record := Record{
		ID:           md.EventID,
		EventType:    md.EventType,
		Payload:      string(payload),
		TraceHeaders: tracing.InjectMap(ctx),
		OccurredAt:   md.OccurredAt,
		CreatedAt:    now,
	}
	if err := o.store.Append(ctx, record); err != nil {
		return err
	}

	logger.Get(ctx).Debug("outbox record added",
		zap.String("component", "outbox"),
		zap.String("id", record.ID),
		zap.String("eventType", record.EventType))
	return nil
}
