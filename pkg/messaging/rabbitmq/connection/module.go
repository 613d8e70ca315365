package connection

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	coreconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/core/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/health"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
)

type moduleOptions struct {
	dialer Dialer
}

type Option func(*moduleOptions)

// WithDialer replaces the amqp091 dialer, e.g. with an in-memory fake.
func WithDialer(d Dialer) Option {
	return func(o *moduleOptions) {
		o.dialer = d
	}
}

// NewConnectionModule provides the BrokerConnection. The first connect runs
// on start and failing it aborts startup.
func NewConnectionModule(opts ...Option) fx.Option {
	o := &moduleOptions{dialer: DialAMQP}
	for _, opt := range opts {
		opt(o)
	}

	return fx.Provide(func(lc fx.Lifecycle, log *zap.Logger, conf config.Config, app coreconfig.AppConfig, readiness health.ComponentManager) BrokerConnection {
		return provideConnection(lc, log, conf, app, readiness, o.dialer)
	})
}

func provideConnection(lc fx.Lifecycle, log *zap.Logger, conf config.Config, app coreconfig.AppConfig, readiness health.ComponentManager, dial Dialer) BrokerConnection {
	c := newConnection(conf, app.ServiceName, log.Named("rabbitmq"), dial)

	markReady := readiness.AddComponent("rabbitmq-connection")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !c.TryConnect(ctx) {
				return fmt.Errorf("%w: %s:%d", messaging.ErrBrokerUnavailable, conf.Host, conf.Port)
			}
			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})

	return c
}
