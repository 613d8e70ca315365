package outbox

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

// WithOutboxConfig provides a static Config instead of loading it from viper.
func WithOutboxConfig(cfg Config) Option {
	return func(o *moduleOptions) {
		o.config = &cfg
	}
}

// NewOutboxModule provides the Outbox and Store and runs the processor as a
// background worker.
func NewOutboxModule(opts ...Option) fx.Option {
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
			newOutbox,
			newProcessor,
			worker.Register[*processor]("outbox-processor", worker.WithReady()),
		),
		fx.Invoke(runMigrations),
	)
}

func runMigrations(lc fx.Lifecycle, log *zap.Logger, migrator mongo.Migrator) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("running outbox migrations")
			return migrator.Up(ctx, "outbox", migrationsFS, "migrations")
		},
	})
}
