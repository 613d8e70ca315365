package consumer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/connection"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/tracing"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// Consumer consumes the orders queue until its context is cancelled.
type Consumer struct {
	conn connection.BrokerConnection
	conf config.Config
	log  *zap.Logger
	tag  string

	registry *Registry
	// newProcessor is replaced in tests to control backoff sleeping.
	newProcessor func() *processor
}

func newConsumer(conn connection.BrokerConnection, conf config.Config, registry *Registry, tag string, log *zap.Logger) (*Consumer, error) {
	outcomes, err := otel.Meter(tracing.TracerName).Int64Counter("rabbitmq.consume.messages",
		metric.WithDescription("Deliveries handled by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create consume counter: %w", err)
	}

	c := &Consumer{
		conn:     conn,
		conf:     conf,
		log:      log,
		tag:      tag,
		registry: registry,
	}
	c.newProcessor = func() *processor {
		return &processor{
			conn:     conn,
			conf:     conf,
			registry: registry,
			log:      log,
			tracer:   otel.Tracer(tracing.TracerName),
			outcomes: outcomes,
			sleep:    sleep,
		}
	}
	return c, nil
}

// Run declares the topology and consumes until ctx is cancelled. A lost
// delivery channel is recovered through the broker connection. Failing the
// first session is fatal.
func (c *Consumer) Run(ctx context.Context) error {
	proc := c.newProcessor()

	c.log.Info("starting consumer",
		zap.String("queue", c.conf.QueueName),
		zap.Strings("bindings", c.conf.Bindings),
		zap.Strings("eventTypes", c.registry.Types()))

	first := true
	for {
		err := c.session(ctx, proc, &first)
		if ctx.Err() != nil {
			return nil
		}
		if first {
			return err
		}

		c.log.Warn("consume session ended, recovering", zap.Error(err))
		if !proc.sleep(ctx, c.conf.NetworkRecoveryInterval) {
			return nil
		}
		if !c.conn.IsConnected() && !c.conn.TryConnect(ctx) {
			c.log.Error("broker still unavailable, will retry")
		}
	}
}

func (c *Consumer) session(ctx context.Context, proc *processor, first *bool) error {
	if !c.conn.IsConnected() && !c.conn.TryConnect(ctx) {
		return fmt.Errorf("%w: cannot start consuming %s", messaging.ErrBrokerUnavailable, c.conf.QueueName)
	}

	ch, err := c.conn.CreateChannel()
	if err != nil {
		return fmt.Errorf("%w: %v", messaging.ErrBrokerUnavailable, err)
	}
	// Pending retries end with the session; their originals are redelivered.
	sessCtx, cancel := context.WithCancel(ctx)
	defer func() {
		// Acks need the channel, so handlers and retries finish first.
		cancel()
		proc.waitHandlers()
		proc.waitRetries()
		_ = ch.Close()
	}()

	if err := declareTopology(ch, c.conf); err != nil {
		return err
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.conf.QueueName, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.conf.QueueName, err)
	}
	*first = false
	c.log.Info("consuming", zap.String("queue", c.conf.QueueName), zap.Int("prefetch", c.conf.PrefetchCount))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			proc.dispatch(sessCtx, d)
		}
	}
}
