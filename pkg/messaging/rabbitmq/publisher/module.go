package publisher

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/connection"
)

// NewPublisherModule provides Publisher. The exchange is declared on start,
// after the broker connection is up.
func NewPublisherModule() fx.Option {
	return fx.Provide(providePublisher)
}

func providePublisher(lc fx.Lifecycle, conn connection.BrokerConnection, conf config.Config, log *zap.Logger) (Publisher, error) {
	p, err := newPublisher(conn, conf, log.Named("publisher"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.declareExchange()
			return nil
		},
	})
	return p, nil
}
