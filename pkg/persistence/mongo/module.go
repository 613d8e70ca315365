package mongo

import (
	"context"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type moduleOptions struct {
	config *Config
}

// Option configures the mongo module.
type Option func(*moduleOptions)

// WithMongoConfig provides a static Config instead of loading it from viper.
func WithMongoConfig(cfg Config) Option {
	return func(o *moduleOptions) {
		o.config = &cfg
	}
}

// NewMongoModule provides Mongo, Admin, persistence.TxManager and Migrator.
func NewMongoModule(opts ...Option) fx.Option {
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
			provideMongo,
			newTxManager,
			newMigrator,
		),
	)
}

func provideMongo(lc fx.Lifecycle, log *zap.Logger, conf Config, readiness health.ComponentManager) (Mongo, Admin, error) {
	m, err := newMongo(log.Named("mongo"), conf)
	if err != nil {
		return nil, nil, err
	}

	markReady := readiness.AddComponent("mongo")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := m.connect(ctx); err != nil {
				return err
			}
			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return m.disconnect(ctx)
		},
	})

	return m, m, nil
}
