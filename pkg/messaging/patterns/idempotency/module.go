package idempotency

import (
	"context"
	"embed"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/worker"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence/mongo"
)

//go:embed migrations/*.json
var migrationsFS embed.FS

type moduleOptions struct {
	config *Config
}

type Option func(*moduleOptions)

func WithIdempotencyConfig(cfg Config) Option {
	return func(o *moduleOptions) {
		o.config = &cfg
	}
}

// NewIdempotencyModule provides the Store and Guard and runs the retention cleaner.
func NewIdempotencyModule(opts ...Option) fx.Option {
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	configProvider := fx.Provide(newConfig)
	if o.config != nil {
		cfg := *o.config
		applyDefaults(&cfg)
		configProvider = fx.Supply(cfg)
	}

	return fx.Options(
		configProvider,
		fx.Provide(
			newStore,
			newGuard,
			newCleaner,
			worker.Register[*cleaner]("idempotency-cleaner", worker.WithReady()),
		),
		fx.Invoke(runMigrations),
	)
}

func runMigrations(lc fx.Lifecycle, log *zap.Logger, migrator mongo.Migrator) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("running idempotency migrations")
			return migrator.Up(ctx, "idempotency", migrationsFS, "migrations")
		},
	})
}
