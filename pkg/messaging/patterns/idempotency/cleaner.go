package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/logger"
)

// cleaner deletes markers older than the retention once per cleanup interval.
type cleaner struct {
	store     Store
	conf      Config
	log       *zap.Logger
	throttler *logger.LogThrottler
	now       func() time.Time
}

func newCleaner(store Store, conf Config, log *zap.Logger) *cleaner {
	log = log.With(zap.String("component", "idempotency"))
	return &cleaner{
		store:     store,
		conf:      conf,
		log:       log,
		throttler: logger.NewLogThrottler(log, 0),
		now:       time.Now,
	}
}

func (c *cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.conf.CleanupInterval)
	defer ticker.Stop()

	for {
		c.clean(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *cleaner) clean(ctx context.Context) {
	cutoff := c.now().Add(-c.conf.Retention)
	n, err := c.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			c.throttler.Warn("cleanup", "failed to purge processed events", zap.Error(err))
		}
		return
	}
	if n > 0 {
		c.log.Info("purged processed events", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
}
