package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/logger"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/connection"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/tracing"
)

const contentTypeJSON = "application/json"

// ErrNacked is returned when the broker rejects a message, including when it
// closes the channel before confirming.
var ErrNacked = errors.New("broker did not confirm the message")

// Publisher sends integration events to the events exchange.
type Publisher interface {
	// Publish sends e with routingKey, or the default "<ns>.orders.<type>" key when empty.
	Publish(ctx context.Context, e events.Event, routingKey string) error
	// PublishAsync runs Publish on its own goroutine. The channel receives exactly one value.
	PublishAsync(ctx context.Context, e events.Event, routingKey string) <-chan error
}

type publisher struct {
	conn   connection.BrokerConnection
	conf   config.Config
	log    *zap.Logger
	tracer trace.Tracer
	now    func() time.Time

	published metric.Int64Counter
	failed    metric.Int64Counter
}

func newPublisher(conn connection.BrokerConnection, conf config.Config, log *zap.Logger) (*publisher, error) {
	meter := otel.Meter(tracing.TracerName)
	published, err := meter.Int64Counter("rabbitmq.publish.messages",
		metric.WithDescription("Messages published to the broker"))
	if err != nil {
		return nil, fmt.Errorf("failed to create publish counter: %w", err)
	}
	failed, err := meter.Int64Counter("rabbitmq.publish.failures",
		metric.WithDescription("Messages the broker did not accept"))
	if err != nil {
		return nil, fmt.Errorf("failed to create publish failure counter: %w", err)
	}

	return &publisher{
		conn:      conn,
		conf:      conf,
		log:       log,
		tracer:    otel.Tracer(tracing.TracerName),
		now:       time.Now,
		published: published,
		failed:    failed,
	}, nil
}

// DefaultRoutingKey returns "<ns>.orders.<lowercase type>".
func DefaultRoutingKey(conf config.Config, eventType string) string {
	return conf.RoutingKeyPrefix() + "orders." + strings.ToLower(eventType)
}

// declareExchange is best effort: a broker that is down at startup, or an
// exchange declared elsewhere with other arguments, must not stop the service.
func (p *publisher) declareExchange() {
	if !p.conn.IsConnected() {
		p.log.Warn("skipping exchange declaration, broker not connected", zap.String("exchange", p.conf.ExchangeName))
		return
	}
	ch, err := p.conn.CreateChannel()
	if err != nil {
		p.log.Warn("failed to open channel for exchange declaration", zap.Error(err))
		return
	}
	defer closeChannel(ch, p.log)

	if err := ch.ExchangeDeclare(p.conf.ExchangeName, p.conf.ExchangeType, true, false, false, false, nil); err != nil {
		p.log.Warn("failed to declare exchange",
			zap.String("exchange", p.conf.ExchangeName),
			zap.String("type", p.conf.ExchangeType),
			zap.Error(err))
		return
	}
	p.log.Info("exchange declared", zap.String("exchange", p.conf.ExchangeName), zap.String("type", p.conf.ExchangeType))
}

func (p *publisher) Publish(ctx context.Context, e events.Event, routingKey string) error {
	if !p.conn.IsConnected() && !p.conn.TryConnect(ctx) {
		return fmt.Errorf("%w: not connected", messaging.ErrBrokerUnavailable)
	}

	body, err := events.Marshal(e)
	if err != nil {
		return err
	}

	md := e.GetMetadata()
	if routingKey == "" {
		routingKey = DefaultRoutingKey(p.conf, e.EventType())
	}
	log := logger.Get(ctx).With(
		zap.String("eventType", e.EventType()),
		zap.String("eventId", md.EventID),
		zap.String("routingKey", routingKey))

	ctx, span := tracing.StartPublishSpan(ctx, p.tracer, p.conf.ExchangeName, routingKey, md.EventID, e.EventType())
	defer span.End()

	headers := amqp.Table{}
	tracing.Inject(ctx, headers)

	attrs := metric.WithAttributes(attribute.String("event_type", e.EventType()))
	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.failed.Add(ctx, 1, attrs)
		log.Error("failed to publish event", zap.Error(err))
		return fmt.Errorf("%w: %w", messaging.ErrBrokerUnavailable, err)
	}

	ch, err := p.conn.CreateChannel()
	if err != nil {
		return fail(err)
	}
	defer closeChannel(ch, p.log)
	if err := ch.Confirm(false); err != nil {
		return fail(fmt.Errorf("enable confirms: %w", err))
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.conf.ExchangeName, routingKey, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Type:         e.EventType(),
		MessageId:    md.EventID,
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fail(err)
	}
	if err := p.waitConfirm(ctx, confirm); err != nil {
		return fail(err)
	}

	p.published.Add(ctx, 1, attrs)
	log.Debug("event published")
	return nil
}

func (p *publisher) waitConfirm(ctx context.Context, confirm connection.Confirmation) error {
	if p.conf.PublishConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.conf.PublishConfirmTimeout)
		defer cancel()
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return ErrNacked
	}
	return nil
}

func (p *publisher) PublishAsync(ctx context.Context, e events.Event, routingKey string) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- p.Publish(ctx, e, routingKey)
		close(result)
	}()
	return result
}

func closeChannel(ch connection.Channel, log *zap.Logger) {
	if err := ch.Close(); err != nil {
		log.Debug("failed to close channel", zap.Error(err))
	}
}
