package modules

import (
	"go.uber.org/fx"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/patterns/idempotency"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/patterns/outbox"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/connection"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/consumer"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/publisher"
)

// NewMessagingModule provides the broker connection, publisher, consumer,
// transactional outbox and idempotency guard. Requires the persistence module.
func NewMessagingModule() fx.Option {
	return fx.Options(
		events.NewEventsModule(),
		config.NewRabbitMQConfigModule(),
		connection.NewConnectionModule(),
		publisher.NewPublisherModule(),
		consumer.NewConsumerModule(),
		outbox.NewOutboxModule(),
		idempotency.NewIdempotencyModule(),
	)
}
