package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
)

type fakeTransport struct {
	mu      sync.Mutex
	closed  bool
	closeCh chan *amqp.Error
	blocked chan amqp.Blocking
}

func (f *fakeTransport) Channel() (Channel, error) {
	return nil, errors.New("not used")
}

func (f *fakeTransport) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCh = receiver
	return receiver
}

func (f *fakeTransport) NotifyBlocked(receiver chan amqp.Blocking) chan amqp.Blocking {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked = receiver
	return receiver
}

func (f *fakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// drop simulates a broker-side connection loss.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.closed = true
	ch := f.closeCh
	f.mu.Unlock()
	ch <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "broker restarted"}
}

type fakeDialer struct {
	mu         sync.Mutex
	failures   int
	calls      int
	transports []*fakeTransport
	lastURI    string
	lastConfig amqp.Config
}

func (d *fakeDialer) dial(uri string, cfg amqp.Config) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.lastURI = uri
	d.lastConfig = cfg
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	t := &fakeTransport{}
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[len(d.transports)-1]
}

func testConfig() config.Config {
	return config.Config{
		Host:                     "localhost",
		Port:                     5672,
		VirtualHost:              "orders",
		Username:                 "guest",
		Password:                 "guest",
		RetryCount:               3,
		RetryDelay:               time.Millisecond,
		AutomaticRecoveryEnabled: lo.ToPtr(true),
		NetworkRecoveryInterval:  5 * time.Millisecond,
	}
}

func TestTryConnect(t *testing.T) {
	t.Run("does not dial at construction", func(t *testing.T) {
		d := &fakeDialer{}
		c := newConnection(testConfig(), "orders", zap.NewNop(), d.dial)

		assert.False(t, c.IsConnected())
		assert.Equal(t, 0, d.Calls())
	})

	t.Run("connects with configured virtual host", func(t *testing.T) {
		d := &fakeDialer{}
		c := newConnection(testConfig(), "orders", zap.NewNop(), d.dial)
		defer c.Close()

		require.True(t, c.TryConnect(context.Background()))

		assert.True(t, c.IsConnected())
		assert.Equal(t, "orders", d.lastConfig.Vhost)
		assert.Equal(t, "orders", d.lastConfig.Properties["connection_name"])
	})

	t.Run("returns immediately when already connected", func(t *testing.T) {
		d := &fakeDialer{}
		c := newConnection(testConfig(), "orders", zap.NewNop(), d.dial)
		defer c.Close()

		require.True(t, c.TryConnect(context.Background()))
		require.True(t, c.TryConnect(context.Background()))

		assert.Equal(t, 1, d.Calls())
	})

	t.Run("retries until the dial succeeds", func(t *testing.T) {
		d := &fakeDialer{failures: 2}
		c := newConnection(testConfig(), "orders", zap.NewNop(), d.dial)
		defer c.Close()

		require.True(t, c.TryConnect(context.Background()))

		assert.Equal(t, 3, d.Calls())
	})

	t.Run("gives up after retry-count attempts", func(t *testing.T) {
		d := &fakeDialer{failures: 10}
		c := newConnection(testConfig(), "orders", zap.NewNop(), d.dial)
		defer c.Close()

		assert.False(t, c.TryConnect(context.Background()))
		assert.Equal(t, 3, d.Calls())
		assert.False(t, c.IsConnected())

		_, err := c.CreateChannel()
		assert.ErrorIs(t, err, ErrConnectionUnavailable)
	})

	t.Run("stops retrying when the context is cancelled", func(t *testing.T) {
		conf := testConfig()
		conf.RetryCount = 100
		conf.RetryDelay = time.Hour
		d := &fakeDialer{failures: 100}
		c := newConnection(conf, "orders", zap.NewNop(), d.dial)
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		assert.False(t, c.TryConnect(ctx))
		assert.Equal(t, 1, d.Calls())
	})
}

func TestRecovery(t *testing.T) {
	t.Run("reconnects after the connection is shut down", func(t *testing.T) {
		d := &fakeDialer{}
		c := newConnection(testConfig(), "orders", zap.NewNop(), d.dial)
		defer c.Close()
		require.True(t, c.TryConnect(context.Background()))

		d.last().drop()

		assert.Eventually(t, func() bool { return d.Calls() == 2 && c.IsConnected() }, time.Second, 5*time.Millisecond)
	})

	t.Run("waits the network recovery interval before reconnecting", func(t *testing.T) {
		d := &fakeDialer{}
		c := newConnection(testConfig(), "orders", zap.NewNop(), d.dial)
		defer c.Close()
		intervals := make(chan time.Duration, 1)
		c.after = func(d time.Duration) <-chan time.Time {
			intervals <- d
			return time.After(0)
		}
		require.True(t, c.TryConnect(context.Background()))

		d.last().drop()

		select {
		case got := <-intervals:
			assert.Equal(t, 5*time.Millisecond, got)
		case <-time.After(time.Second):
			t.Fatal("reconnect was not scheduled")
		}
	})

	t.Run("does not reconnect when automatic recovery is disabled", func(t *testing.T) {
		conf := testConfig()
		conf.AutomaticRecoveryEnabled = lo.ToPtr(false)
		d := &fakeDialer{}
		c := newConnection(conf, "orders", zap.NewNop(), d.dial)
		defer c.Close()
		require.True(t, c.TryConnect(context.Background()))

		d.last().drop()

		assert.Never(t, func() bool { return d.Calls() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
		assert.False(t, c.IsConnected())
	})

	t.Run("callback failure schedules a reconnect attempt", func(t *testing.T) {
		d := &fakeDialer{}
		c := newConnection(testConfig(), "orders", zap.NewNop(), d.dial)
		defer c.Close()
		scheduled := make(chan struct{}, 1)
		c.after = func(time.Duration) <-chan time.Time {
			scheduled <- struct{}{}
			return time.After(0)
		}

		c.ReportCallbackFailure(errors.New("handler panicked"))

		select {
		case <-scheduled:
		case <-time.After(time.Second):
			t.Fatal("reconnect was not scheduled")
		}
		assert.Eventually(t, c.IsConnected, time.Second, 5*time.Millisecond)
	})
}

func TestClose(t *testing.T) {
	d := &fakeDialer{}
	c := newConnection(testConfig(), "orders", zap.NewNop(), d.dial)
	require.True(t, c.TryConnect(context.Background()))
	transport := d.last()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.True(t, transport.IsClosed())
	assert.False(t, c.IsConnected())
	assert.False(t, c.TryConnect(context.Background()))
	assert.Equal(t, 1, d.Calls())
}
