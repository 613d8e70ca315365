package consumer

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/connection"
)

// declareTopology declares the dead-letter pair, the events exchange and the
// main queue, then binds the queue for every configured pattern.
func declareTopology(ch connection.Channel, conf config.Config) error {
	if err := ch.ExchangeDeclare(conf.DeadLetterExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange %s: %w", conf.DeadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(conf.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue %s: %w", conf.DeadLetterQueue, err)
	}
	if err := ch.QueueBind(conf.DeadLetterQueue, conf.DeadLetterQueue, conf.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue: %w", err)
	}

	if err := ch.ExchangeDeclare(conf.ExchangeName, conf.ExchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", conf.ExchangeName, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    conf.DeadLetterExchange,
		"x-dead-letter-routing-key": conf.DeadLetterQueue,
	}
	if _, err := ch.QueueDeclare(conf.QueueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", conf.QueueName, err)
	}
	for _, key := range conf.Bindings {
		if err := ch.QueueBind(conf.QueueName, key, conf.ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s with %q: %w", conf.QueueName, conf.ExchangeName, key, err)
		}
	}

	if err := ch.Qos(conf.PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("set prefetch %d: %w", conf.PrefetchCount, err)
	}
	return nil
}
