package consumer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/logger"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/connection"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/tracing"
	obstracing "github.com/Sokol111/ecommerce-orders-messaging/pkg/observability/tracing"
)

// processor runs the per-delivery state machine:
// received, routed, handled, then acked, retried or dead-lettered.
type processor struct {
	conn     connection.BrokerConnection
	conf     config.Config
	registry *Registry
	log      *zap.Logger
	tracer   trace.Tracer
	outcomes metric.Int64Counter

	// sleep waits d or until ctx is done, reporting whether d elapsed.
	sleep func(ctx context.Context, d time.Duration) bool

	handlers sync.WaitGroup
	retries  sync.WaitGroup
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// dispatch handles d on its own goroutine. Concurrency is bounded by the
// channel prefetch. sessCtx ends with the channel d arrived on and aborts
// pending retry backoffs.
func (p *processor) dispatch(sessCtx context.Context, d amqp.Delivery) {
	p.handlers.Add(1)
	go func() {
		defer p.handlers.Done()
		p.process(sessCtx, d)
	}()
}

// waitHandlers blocks until every dispatched handler returned.
func (p *processor) waitHandlers() {
	p.handlers.Wait()
}

// waitRetries blocks until every scheduled retry finished or gave up.
func (p *processor) waitRetries() {
	p.retries.Wait()
}

func (p *processor) process(sessCtx context.Context, d amqp.Delivery) {
	retry := retryCount(d.Headers)
	log := p.log.With(
		zap.String("eventType", d.Type),
		zap.String("messageId", d.MessageId),
		zap.Int("retryCount", retry))

	// Handlers finish even when shutdown starts, bounded by the handler timeout.
	ctx, span := tracing.StartConsumeSpan(context.WithoutCancel(sessCtx), p.tracer, p.conf.QueueName, d)
	defer span.End()
	log = log.With(obstracing.LogFields(ctx)...)
	ctx = logger.With(ctx, log)

	handle, ok := p.registry.lookup(d.Type)
	if !ok {
		log.Warn("no handler registered for event type, acknowledging")
		span.SetStatus(codes.Ok, "unknown event type")
		p.record(ctx, d.Type, "unknown")
		p.ack(d, log)
		return
	}

	hctx := ctx
	if p.conf.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, p.conf.HandlerTimeout)
		defer cancel()
	}
	res := p.invoke(hctx, handle, d.Body)
	p.record(ctx, d.Type, res.Outcome.String())

	switch res.Outcome {
	case OutcomeSuccess:
		span.SetStatus(codes.Ok, "")
		p.ack(d, log)
	case OutcomeRetry:
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "retry")
		p.scheduleRetry(sessCtx, d, retry, res.Err, log)
	default:
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "dead-lettered")
		p.logFailure(log, "event handling failed permanently, dead-lettering", res.Err)
		p.nack(d, log)
	}
}

func (p *processor) invoke(ctx context.Context, handle dispatchFunc, body []byte) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			err := &PanicError{Panic: rec, Stack: debug.Stack()}
			p.conn.ReportCallbackFailure(err)
			res = Fatal(err)
		}
	}()
	return handle(ctx, body)
}

func (p *processor) scheduleRetry(sessCtx context.Context, d amqp.Delivery, retry int, cause error, log *zap.Logger) {
	if retry >= p.conf.MaxRetryCount {
		log.Error("retry limit reached, dead-lettering",
			zap.Int("maxRetryCount", p.conf.MaxRetryCount),
			zap.Error(cause))
		p.nack(d, log)
		return
	}

	delay := retryDelay(retry)
	log.Warn("event handling failed, scheduling retry",
		zap.Duration("delay", delay),
		zap.Error(cause))

	p.retries.Add(1)
	go func() {
		defer p.retries.Done()
		if !p.sleep(sessCtx, delay) {
			log.Info("session ended during retry backoff, leaving message for redelivery")
			return
		}
		if err := p.republish(d, retry+1); err != nil {
			log.Error("failed to republish for retry, dead-lettering", zap.Error(err))
			p.nack(d, log)
			return
		}
		// The republished copy carries the retry; the original is done.
		p.ack(d, log)
	}()
}

func (p *processor) republish(d amqp.Delivery, retry int) error {
	ch, err := p.conn.CreateChannel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}

	mode := d.DeliveryMode
	if mode == 0 {
		mode = amqp.Persistent
	}
	timeout := p.conf.PublishConfirmTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, d.Exchange, d.RoutingKey, false, false, amqp.Publishing{
		Headers:       withRetryCount(d.Headers, retry),
		ContentType:   d.ContentType,
		DeliveryMode:  mode,
		CorrelationId: d.CorrelationId,
		MessageId:     d.MessageId,
		Timestamp:     d.Timestamp,
		Type:          d.Type,
		AppId:         d.AppId,
		Body:          d.Body,
	})
	if err != nil {
		return err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return errRetryNacked
	}
	return nil
}

var errRetryNacked = errors.New("broker did not confirm the retry copy")

func (p *processor) ack(d amqp.Delivery, log *zap.Logger) {
	if err := d.Ack(false); err != nil {
		log.Error("failed to ack delivery", zap.Error(err))
	}
}

// nack without requeue; the broker routes the message to the dead-letter exchange.
func (p *processor) nack(d amqp.Delivery, log *zap.Logger) {
	if err := d.Nack(false, false); err != nil {
		log.Error("failed to nack delivery", zap.Error(err))
	}
}

func (p *processor) record(ctx context.Context, eventType, outcome string) {
	if p.outcomes == nil {
		return
	}
	p.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome)))
}

func (p *processor) logFailure(log *zap.Logger, msg string, err error) {
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		log.Error(msg,
			zap.String("panic", fmt.Sprint(panicErr.Panic)),
			zap.ByteString("stack", panicErr.Stack))
		return
	}
	log.Error(msg, zap.Error(err))
}
