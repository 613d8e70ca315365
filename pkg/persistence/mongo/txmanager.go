package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
	"go.uber.org/zap"
)

const transientTransactionLabel = "TransientTransactionError"

type mongoTxManager struct {
	admin       Admin
	log         *zap.Logger
	maxAttempts int
}

func newTxManager(admin Admin, log *zap.Logger, conf Config) persistence.TxManager {
	attempts := conf.TxMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &mongoTxManager{
		admin:       admin,
		log:         log,
		maxAttempts: attempts,
	}
}

// isTransientError reports whether err carries the TransientTransactionError label.
func isTransientError(err error) bool {
	var labeled interface{ HasErrorLabel(string) bool }
	if errors.As(err, &labeled) {
		return labeled.HasErrorLabel(transientTransactionLabel)
	}
	return false
}

func (t *mongoTxManager) WithTransaction(ctx context.Context, fn func(txCtx context.Context) (any, error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			t.log.Warn("retrying transaction", zap.Int("attempt", attempt))
		}

		session, err := t.admin.StartSession()
		if err != nil {
			return nil, fmt.Errorf("failed to start session: %w", err)
		}

		result, err := session.WithTransaction(ctx, fn)
		session.EndSession(ctx)

		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransientError(err) {
			return nil, fmt.Errorf("transaction failed: %w", err)
		}
		t.log.Warn("transient transaction error",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max-attempts", t.maxAttempts))
	}

	return nil, fmt.Errorf("transaction failed after %d attempts: %w", t.maxAttempts, lastErr)
}
