// Package tracing carries W3C trace context through AMQP message headers.
package tracing

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "rabbitmq"

	attrSystem      = "messaging.system"
	attrDestination = "messaging.destination.name"
	attrRoutingKey  = "messaging.rabbitmq.destination.routing_key"
	attrMessageID   = "messaging.message.id"
	attrEventType   = "messaging.message.type"
)

// HeaderCarrier adapts amqp.Table to propagation.TextMapCarrier.
type HeaderCarrier amqp.Table

var _ propagation.TextMapCarrier = HeaderCarrier(nil)

func (c HeaderCarrier) Get(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func (c HeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// Inject writes the span context of ctx into headers.
func Inject(ctx context.Context, headers amqp.Table) {
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier(headers))
}

// Extract returns ctx carrying the span context found in headers.
func Extract(ctx context.Context, headers amqp.Table) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, HeaderCarrier(headers))
}

// InjectMap serializes the span context of ctx into a plain map, for storage.
func InjectMap(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// ExtractMap restores a span context stored with InjectMap.
func ExtractMap(ctx context.Context, stored map[string]string) context.Context {
	if len(stored) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(stored))
}

// StartPublishSpan starts a producer span for a message sent to exchange with routingKey.
func StartPublishSpan(ctx context.Context, tracer trace.Tracer, exchange, routingKey, messageID, eventType string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rabbitmq.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String(attrSystem, "rabbitmq"),
			attribute.String(attrDestination, exchange),
			attribute.String(attrRoutingKey, routingKey),
			attribute.String(attrMessageID, messageID),
			attribute.String(attrEventType, eventType),
		),
	)
}

// StartConsumeSpan starts a consumer span continuing the trace carried by d.
func StartConsumeSpan(ctx context.Context, tracer trace.Tracer, queue string, d amqp.Delivery) (context.Context, trace.Span) {
	ctx = Extract(ctx, d.Headers)
	return tracer.Start(ctx, "rabbitmq.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String(attrSystem, "rabbitmq"),
			attribute.String(attrDestination, queue),
			attribute.String(attrRoutingKey, d.RoutingKey),
			attribute.String(attrMessageID, d.MessageId),
			attribute.String(attrEventType, d.Type),
		),
	)
}
