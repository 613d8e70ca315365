package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
)

// ErrConnectionUnavailable is returned by CreateChannel when no connection is open.
var ErrConnectionUnavailable = errors.New("rabbitmq connection is not open")

// BrokerConnection owns the single broker connection of the process and
// recovers it after network failures.
type BrokerConnection interface {
	IsConnected() bool
	// TryConnect returns true once a connection is open, retrying the dial
	// retry-count times with retry-delay between attempts.
	TryConnect(ctx context.Context) bool
	CreateChannel() (Channel, error)
	// ReportCallbackFailure records a failure raised inside a delivery callback
	// and schedules recovery.
	ReportCallbackFailure(err error)
	Close() error
}

type connection struct {
	conf  config.Config
	name  string
	log   *zap.Logger
	dial  Dialer
	after func(time.Duration) <-chan time.Time

	connectMu sync.Mutex

	stateMu   sync.RWMutex
	transport Transport
	shutdown  bool

	reconnecting atomic.Bool
	stop         chan struct{}
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

func newConnection(conf config.Config, name string, log *zap.Logger, dial Dialer) *connection {
	return &connection{
		conf:  conf,
		name:  name,
		log:   log,
		dial:  dial,
		after: time.After,
		stop:  make(chan struct{}),
	}
}

func (c *connection) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return !c.shutdown && c.transport != nil && !c.transport.IsClosed()
}

func (c *connection) isShutdown() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.shutdown
}

func (c *connection) TryConnect(ctx context.Context) bool {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.IsConnected() {
		return true
	}
	if c.isShutdown() {
		return false
	}

	c.log.Info("connecting to rabbitmq",
		zap.String("host", c.conf.Host),
		zap.Int("port", c.conf.Port),
		zap.String("virtual-host", c.conf.VirtualHost))

	attempt := 0
	var transport Transport
	op := func() error {
		attempt++
		t, err := c.dial(c.conf.URI(), amqp.Config{
			Vhost:      c.conf.VirtualHost,
			Properties: amqp.Table{"connection_name": c.name},
		})
		if err != nil {
			c.log.Warn("rabbitmq connect attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max-attempts", c.conf.RetryCount),
				zap.Duration("retry-delay", c.conf.RetryDelay),
				zap.Error(err))
			return err
		}
		transport = t
		return nil
	}

	retries := uint64(0)
	if c.conf.RetryCount > 1 {
		retries = uint64(c.conf.RetryCount - 1)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.conf.RetryDelay), retries),
		ctx,
	)

	if err := backoff.Retry(op, policy); err != nil {
		c.log.Error("rabbitmq connection could not be established",
			zap.Int("attempts", attempt),
			zap.Error(err))
		return false
	}

	c.stateMu.Lock()
	if c.shutdown {
		c.stateMu.Unlock()
		_ = transport.Close()
		return false
	}
	c.transport = transport
	c.watch(transport)
	c.stateMu.Unlock()

	c.log.Info("connected to rabbitmq", zap.Int("attempts", attempt))
	return true
}

// watch must be called with stateMu held.
func (c *connection) watch(t Transport) {
	closed := t.NotifyClose(make(chan *amqp.Error, 1))
	blocked := t.NotifyBlocked(make(chan amqp.Blocking, 1))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.stop:
				return
			case err, ok := <-closed:
				if !ok && c.isShutdown() {
					return
				}
				c.log.Warn("rabbitmq connection shut down, trying to reconnect", zap.Error(amqpErr(err)))
				c.scheduleReconnect()
				return
			case b, ok := <-blocked:
				if !ok {
					blocked = nil
					continue
				}
				if b.Active {
					c.log.Warn("rabbitmq connection blocked, trying to reconnect", zap.String("reason", b.Reason))
					c.scheduleReconnect()
				}
			}
		}
	}()
}

func amqpErr(err *amqp.Error) error {
	if err == nil {
		return nil
	}
	return err
}

func (c *connection) scheduleReconnect() {
	if !c.conf.AutoRecovery() {
		return
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	c.stateMu.RLock()
	if c.shutdown {
		c.stateMu.RUnlock()
		c.reconnecting.Store(false)
		return
	}
	c.wg.Add(1)
	c.stateMu.RUnlock()

	go func() {
		defer c.wg.Done()
		defer c.reconnecting.Store(false)

		select {
		case <-c.stop:
			return
		case <-c.after(c.conf.NetworkRecoveryInterval):
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-c.stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		c.TryConnect(ctx)
	}()
}

func (c *connection) ReportCallbackFailure(err error) {
	c.log.Error("rabbitmq delivery callback failed, trying to reconnect", zap.Error(err))
	c.scheduleReconnect()
}

func (c *connection) CreateChannel() (Channel, error) {
	c.stateMu.RLock()
	t := c.transport
	ok := !c.shutdown && t != nil && !t.IsClosed()
	c.stateMu.RUnlock()
	if !ok {
		return nil, ErrConnectionUnavailable
	}
	return t.Channel()
}

func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stateMu.Lock()
		c.shutdown = true
		t := c.transport
		c.stateMu.Unlock()

		close(c.stop)
		c.wg.Wait()

		if t != nil && !t.IsClosed() {
			err = t.Close()
		}
		c.log.Info("rabbitmq connection closed")
	})
	return err
}
