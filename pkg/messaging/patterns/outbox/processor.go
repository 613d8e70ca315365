package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/logger"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/publisher"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/tracing"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
)

// processor publishes pending records every poll interval. A record that
// fails is retried on every cycle until it is published.
type processor struct {
	store     Store
	tx        persistence.TxManager
	publisher publisher.Publisher
	registry  *events.Registry
	conf      Config
	log       *zap.Logger
	throttler *logger.LogThrottler
	now       func() time.Time
}

func newProcessor(store Store, tx persistence.TxManager, pub publisher.Publisher, registry *events.Registry, conf Config, log *zap.Logger) *processor {
	log = log.With(zap.String("component", "outbox"))
	return &processor{
		store:     store,
		tx:        tx,
		publisher: pub,
		registry:  registry,
		conf:      conf,
		log:       log,
		throttler: logger.NewLogThrottler(log, time.Minute),
		now:       time.Now,
	}
}

// attempt is the outcome of publishing one record.
type attempt struct {
	id  string
	err error
}

func (p *processor) Run(ctx context.Context) error {
	p.log.Info("outbox processor started",
		zap.Int("batchSize", p.conf.BatchSize),
		zap.Duration("pollInterval", p.conf.PollInterval),
		zap.Duration("retention", p.conf.Retention))

	ticker := time.NewTicker(p.conf.PollInterval)
	defer ticker.Stop()

	for {
		p.cycle(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *processor) cycle(ctx context.Context) {
	published, failed, err := p.processBatch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.throttler.Warn(err.Error(), "outbox cycle failed, records stay pending", zap.Error(err))
	} else if published+failed > 0 {
		p.log.Info("outbox batch processed", zap.Int("published", published), zap.Int("failed", failed))
	}

	purged, err := p.purge(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.throttler.Warn(err.Error(), "outbox purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		p.log.Info("purged published outbox records", zap.Int64("count", purged))
	}
}

// processBatch publishes the oldest pending records and commits every status
// change in one transaction. If the commit fails all records stay pending.
func (p *processor) processBatch(ctx context.Context) (int, int, error) {
	records, err := p.store.FetchUnpublished(ctx, p.conf.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", messaging.ErrPersistence, err)
	}
	if len(records) == 0 {
		return 0, 0, nil
	}

	attempts := lo.Map(records, func(r Record, _ int) attempt {
		err := p.publish(ctx, r)
		if err != nil {
			p.log.Warn("failed to publish outbox record",
				zap.String("id", r.ID),
				zap.String("eventType", r.EventType),
				zap.Int("attemptCount", r.AttemptCount+1),
				zap.Error(err))
		}
		return attempt{id: r.ID, err: err}
	})

	_, err = p.tx.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		for _, a := range attempts {
			var markErr error
			if a.err == nil {
				markErr = p.store.MarkPublished(txCtx, a.id)
			} else {
				markErr = p.store.MarkError(txCtx, a.id, a.err.Error())
			}
			if markErr != nil {
				return nil, markErr
			}
		}
		return nil, nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: commit outbox status: %v", messaging.ErrPersistence, err)
	}

	failed := lo.CountBy(attempts, func(a attempt) bool { return a.err != nil })
	return len(attempts) - failed, failed, nil
}

func (p *processor) publish(ctx context.Context, r Record) error {
	e, err := p.registry.Decode(r.EventType, []byte(r.Payload))
	if err != nil {
		return err
	}
	return p.publisher.Publish(tracing.ExtractMap(ctx, r.TraceHeaders), e, "")
}

func (p *processor) purge(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.conf.Retention)
	res, err := p.tx.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return p.store.DeletePublishedOlderThan(txCtx, cutoff)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: purge outbox: %v", messaging.ErrPersistence, err)
	}
	n, _ := res.(int64)
	return n, nil
}
