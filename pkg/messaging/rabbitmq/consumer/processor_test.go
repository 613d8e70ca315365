package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/rabbitmqtest"
)

type sleepRecorder struct {
	mu      sync.Mutex
	delays  []time.Duration
	elapsed bool
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.elapsed
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type fixture struct {
	broker   *rabbitmqtest.Broker
	conn     *rabbitmqtest.Connection
	registry *Registry
	sleeper  *sleepRecorder
	proc     *processor
}

func newFixture(maxRetry int) *fixture {
	broker := rabbitmqtest.NewBroker()
	conn := rabbitmqtest.NewConnection(broker)
	registry := NewRegistry(events.NewDefaultRegistry())
	sleeper := &sleepRecorder{elapsed: true}
	return &fixture{
		broker:   broker,
		conn:     conn,
		registry: registry,
		sleeper:  sleeper,
		proc: &processor{
			conn:     conn,
			conf:     config.Config{QueueName: "orders.queue", MaxRetryCount: maxRetry},
			registry: registry,
			log:      zap.NewNop(),
			tracer:   noop.NewTracerProvider().Tracer("test"),
			sleep:    sleeper.sleep,
		},
	}
}

func userCreatedDelivery(ack *rabbitmqtest.Acknowledger, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		Headers:      headers,
		ContentType:  "application/json",
		Type:         events.TypeUserCreated,
		MessageId:    "evt-1",
		Exchange:     "events",
		RoutingKey:   "users.usercreatedintegrationevent",
		Body:         []byte(`{"eventId":"evt-1","eventType":"UserCreatedIntegrationEvent","userId":"u-1","name":"Ana"}`),
	}
}

// run processes d synchronously, including any scheduled retry.
func (f *fixture) run(d amqp.Delivery) {
	f.proc.process(context.Background(), d)
	f.proc.waitRetries()
}

func TestProcess_Success(t *testing.T) {
	f := newFixture(3)
	var got *events.UserCreated
	Handle(f.registry, events.TypeUserCreated, func(_ context.Context, e *events.UserCreated) Result {
		got = e
		return Success
	})
	ack := &rabbitmqtest.Acknowledger{}

	f.run(userCreatedDelivery(ack, nil))

	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, "evt-1", got.GetMetadata().EventID)
	assert.Equal(t, 1, ack.Acks())
	assert.Equal(t, 0, ack.Nacks())
}

func TestProcess_UnknownTypeIsAcked(t *testing.T) {
	f := newFixture(3)
	called := false
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		called = true
		return Success
	})
	ack := &rabbitmqtest.Acknowledger{}
	d := userCreatedDelivery(ack, nil)
	d.Type = "InvoicePaidIntegrationEvent"

	f.run(d)

	assert.False(t, called)
	assert.Equal(t, 1, ack.Acks())
	assert.Equal(t, 0, ack.Nacks())
	assert.Empty(t, f.broker.Published())
}

func TestProcess_FatalDeadLetters(t *testing.T) {
	f := newFixture(3)
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		return Fatal(errors.New("user id missing"))
	})
	ack := &rabbitmqtest.Acknowledger{}

	f.run(userCreatedDelivery(ack, nil))

	assert.Equal(t, 0, ack.Acks())
	assert.Equal(t, 1, ack.Nacks())
	assert.False(t, ack.Requeued())
	assert.Empty(t, f.broker.Published())
}

func TestProcess_MalformedBodyIsFatal(t *testing.T) {
	f := newFixture(3)
	called := false
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		called = true
		return Success
	})
	ack := &rabbitmqtest.Acknowledger{}
	d := userCreatedDelivery(ack, nil)
	d.Body = []byte(`{"userId":`)

	f.run(d)

	assert.False(t, called)
	assert.Equal(t, 1, ack.Nacks())
	assert.False(t, ack.Requeued())
}

func TestProcess_PanicIsFatalAndReported(t *testing.T) {
	f := newFixture(3)
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		panic("nil map")
	})
	ack := &rabbitmqtest.Acknowledger{}

	f.run(userCreatedDelivery(ack, nil))

	assert.Equal(t, 1, ack.Nacks())
	failures := f.conn.CallbackFailures()
	require.Len(t, failures, 1)
	var panicErr *PanicError
	require.ErrorAs(t, failures[0], &panicErr)
	assert.Equal(t, "nil map", panicErr.Panic)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestProcess_RetryRepublishesWithIncrementedCount(t *testing.T) {
	f := newFixture(3)
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		return Retry(messaging.ErrPersistence)
	})
	ack := &rabbitmqtest.Acknowledger{}

	f.run(userCreatedDelivery(ack, amqp.Table{"traceparent": "00-abc", headerRetryCount: int32(1)}))

	published := f.broker.Published()
	require.Len(t, published, 1)
	msg := published[0]
	assert.Equal(t, "events", msg.Exchange)
	assert.Equal(t, "users.usercreatedintegrationevent", msg.RoutingKey)
	assert.Equal(t, int32(2), msg.Msg.Headers[headerRetryCount])
	assert.Equal(t, "00-abc", msg.Msg.Headers["traceparent"])
	assert.Equal(t, events.TypeUserCreated, msg.Msg.Type)
	assert.Equal(t, "evt-1", msg.Msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.Msg.DeliveryMode)
	assert.Equal(t, 1, ack.Acks())
	assert.Equal(t, 0, ack.Nacks())
	assert.Equal(t, []time.Duration{4 * time.Second}, f.sleeper.Delays())
}

func TestProcess_BackoffDoubles(t *testing.T) {
	f := newFixture(3)
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		return Retry(errors.New("db down"))
	})

	for retry := 0; retry < 3; retry++ {
		f.run(userCreatedDelivery(&rabbitmqtest.Acknowledger{}, amqp.Table{headerRetryCount: int64(retry)}))
	}

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, f.sleeper.Delays())
}

func TestProcess_RetryCeiling(t *testing.T) {
	const maxRetry = 3
	f := newFixture(maxRetry)
	calls := 0
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		calls++
		return Retry(errors.New("db down"))
	})

	// Feed every republished copy back in, as the broker would.
	acks := []*rabbitmqtest.Acknowledger{{}}
	f.run(userCreatedDelivery(acks[0], nil))
	for i := 0; i < 10; i++ {
		published := f.broker.Published()
		if len(published) <= i {
			break
		}
		next := &rabbitmqtest.Acknowledger{}
		acks = append(acks, next)
		d := userCreatedDelivery(next, published[i].Msg.Headers)
		f.run(d)
	}

	totalNacks, totalAcks := 0, 0
	for _, a := range acks {
		totalNacks += a.Nacks()
		totalAcks += a.Acks()
		assert.False(t, a.Requeued())
	}
	assert.Len(t, f.broker.Published(), maxRetry)
	assert.Equal(t, maxRetry+1, calls)
	assert.Equal(t, maxRetry, totalAcks)
	assert.Equal(t, 1, totalNacks)
}

func TestProcess_ShutdownDuringBackoffLeavesMessageUnacked(t *testing.T) {
	f := newFixture(3)
	f.sleeper.elapsed = false
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		return Retry(errors.New("db down"))
	})
	ack := &rabbitmqtest.Acknowledger{}

	f.run(userCreatedDelivery(ack, nil))

	assert.Equal(t, 0, ack.Acks())
	assert.Equal(t, 0, ack.Nacks())
	assert.Empty(t, f.broker.Published())
}

func TestProcess_RepublishFailureDeadLetters(t *testing.T) {
	f := newFixture(3)
	f.broker.PublishErr = errors.New("channel closed")
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		return Retry(errors.New("db down"))
	})
	ack := &rabbitmqtest.Acknowledger{}

	f.run(userCreatedDelivery(ack, nil))

	assert.Equal(t, 0, ack.Acks())
	assert.Equal(t, 1, ack.Nacks())
}

func TestProcess_RepublishNackDeadLetters(t *testing.T) {
	f := newFixture(3)
	f.broker.Nack = true
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		return Retry(errors.New("db down"))
	})
	ack := &rabbitmqtest.Acknowledger{}

	f.run(userCreatedDelivery(ack, nil))

	assert.Equal(t, 0, ack.Acks(), "an unconfirmed retry copy must not settle the original")
	assert.Equal(t, 1, ack.Nacks())
	assert.Empty(t, f.broker.Published())
}

func TestProcess_HandlerContextHasDeadline(t *testing.T) {
	f := newFixture(3)
	f.proc.conf.HandlerTimeout = 30 * time.Second
	var (
		deadline time.Time
		ok       bool
	)
	Handle(f.registry, events.TypeUserCreated, func(ctx context.Context, _ *events.UserCreated) Result {
		deadline, ok = ctx.Deadline()
		return Success
	})
	ack := &rabbitmqtest.Acknowledger{}
	start := time.Now()

	f.run(userCreatedDelivery(ack, nil))

	require.True(t, ok)
	assert.WithinDuration(t, start.Add(30*time.Second), deadline, 5*time.Second)
	assert.Equal(t, 1, ack.Acks())
}

func TestProcess_HandlerTimeoutSurfacesToHandler(t *testing.T) {
	f := newFixture(0)
	f.proc.conf.HandlerTimeout = 10 * time.Millisecond
	Handle(f.registry, events.TypeUserCreated, func(ctx context.Context, _ *events.UserCreated) Result {
		<-ctx.Done()
		return Retry(ctx.Err())
	})
	ack := &rabbitmqtest.Acknowledger{}

	f.run(userCreatedDelivery(ack, nil))

	assert.Equal(t, 1, ack.Nacks())
}

func TestProcess_ZeroMaxRetryDeadLettersFirstRetry(t *testing.T) {
	f := newFixture(0)
	Handle(f.registry, events.TypeUserCreated, func(context.Context, *events.UserCreated) Result {
		return Retry(errors.New("db down"))
	})
	ack := &rabbitmqtest.Acknowledger{}

	f.run(userCreatedDelivery(ack, nil))

	assert.Equal(t, 1, ack.Nacks())
	assert.Empty(t, f.sleeper.Delays())
}
