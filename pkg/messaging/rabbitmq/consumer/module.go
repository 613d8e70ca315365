package consumer

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	coreconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/core/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/worker"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/connection"
)

// NewConsumerModule provides the handler Registry and runs the Consumer as a
// worker. Handlers are added with Handle from an fx.Invoke.
func NewConsumerModule() fx.Option {
	return fx.Options(
		fx.Provide(
			NewRegistry,
			func(conn connection.BrokerConnection, conf config.Config, registry *Registry, app coreconfig.AppConfig, log *zap.Logger) (*Consumer, error) {
				return newConsumer(conn, conf, registry, app.ServiceName, log.Named("consumer"))
			},
			worker.Register[*Consumer]("rabbitmq-consumer", worker.WithReady(), worker.WithShutdown()),
		),
	)
}
