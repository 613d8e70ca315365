// Package rabbitmqtest provides in-memory broker fakes for tests.
package rabbitmqtest

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/connection"
)

// Published is a message the broker confirmed.
type Published struct {
	Exchange   string
	RoutingKey string
	Msg        amqp.Publishing
}

type Binding struct {
	Queue, Key, Exchange string
}

// Broker records everything published or declared through its channels.
type Broker struct {
	mu         sync.Mutex
	published  []Published
	exchanges  map[string]string
	queues     map[string]amqp.Table
	bindings   []Binding
	prefetch   int
	deliveries chan amqp.Delivery

	// PublishErr, when set, fails every publish.
	PublishErr error
	// ConfirmErr, when set, fails putting a channel into confirm mode.
	ConfirmErr error
	// Nack, when set, makes the broker reject every publish.
	Nack bool
	// HoldConfirms, when set, leaves every confirmation pending.
	HoldConfirms bool
	// DeclareErr, when set, fails every exchange declaration.
	DeclareErr error
	// OnPublish, when set, is called after a publish is recorded.
	OnPublish func(Published)
}

func NewBroker() *Broker {
	return &Broker{
		exchanges:  map[string]string{},
		queues:     map[string]amqp.Table{},
		deliveries: make(chan amqp.Delivery, 64),
	}
}

// Deliver pushes d to the current consumer.
func (b *Broker) Deliver(d amqp.Delivery) {
	b.mu.Lock()
	ch := b.deliveries
	b.mu.Unlock()
	ch <- d
}

// CloseDeliveries ends the delivery stream, as a dropped channel would.
func (b *Broker) CloseDeliveries() {
	b.mu.Lock()
	defer b.mu.Unlock()
	close(b.deliveries)
	b.deliveries = make(chan amqp.Delivery, 64)
}

func (b *Broker) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.published...)
}

func (b *Broker) Exchanges() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.exchanges))
	for k, v := range b.exchanges {
		out[k] = v
	}
	return out
}

func (b *Broker) Queue(name string) (amqp.Table, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	args, ok := b.queues[name]
	return args, ok
}

func (b *Broker) Bindings() []Binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Binding(nil), b.bindings...)
}

func (b *Broker) Prefetch() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prefetch
}

// Channel is a fake connection.Channel bound to a Broker.
type Channel struct {
	broker  *Broker
	mu      sync.Mutex
	closed  bool
	confirm bool
}

var _ connection.Channel = (*Channel)(nil)

func (c *Channel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.broker.DeclareErr != nil {
		return c.broker.DeclareErr
	}
	c.broker.exchanges[name] = kind
	return nil
}

func (c *Channel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (c *Channel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.bindings = append(c.broker.bindings, Binding{Queue: name, Key: key, Exchange: exchange})
	return nil
}

func (c *Channel) Qos(prefetchCount, _ int, _ bool) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.prefetch = prefetchCount
	return nil
}

func (c *Channel) ConsumeWithContext(_ context.Context, _, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.broker.deliveries, nil
}

func (c *Channel) Confirm(bool) error {
	c.broker.mu.Lock()
	err := c.broker.ConfirmErr
	c.broker.mu.Unlock()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirm = true
	return nil
}

func (c *Channel) PublishWithDeferredConfirmWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) (connection.Confirmation, error) {
	c.mu.Lock()
	confirm := c.confirm
	c.mu.Unlock()
	if !confirm {
		return nil, errNotInConfirmMode
	}

	c.broker.mu.Lock()
	switch {
	case c.broker.PublishErr != nil:
		err := c.broker.PublishErr
		c.broker.mu.Unlock()
		return nil, err
	case c.broker.HoldConfirms:
		c.broker.mu.Unlock()
		return pendingConfirmation{}, nil
	case c.broker.Nack:
		c.broker.mu.Unlock()
		return settledConfirmation(false), nil
	}
	p := Published{Exchange: exchange, RoutingKey: key, Msg: msg}
	c.broker.published = append(c.broker.published, p)
	hook := c.broker.OnPublish
	c.broker.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return settledConfirmation(true), nil
}

var errNotInConfirmMode = errors.New("channel is not in confirm mode")

// settledConfirmation is a confirmation that already arrived; true is an ack.
type settledConfirmation bool

func (c settledConfirmation) WaitContext(context.Context) (bool, error) {
	return bool(c), nil
}

// pendingConfirmation never arrives.
type pendingConfirmation struct{}

func (pendingConfirmation) WaitContext(ctx context.Context) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Connection is a fake connection.BrokerConnection over a Broker.
type Connection struct {
	Broker *Broker

	mu              sync.Mutex
	connected       bool
	connectErr      bool
	connectCalls    int
	callbackFailure []error
	channels        []*Channel
}

var _ connection.BrokerConnection = (*Connection)(nil)

func NewConnection(b *Broker) *Connection {
	return &Connection{Broker: b, connected: true}
}

// SetConnected toggles the connection state. When refuse is true TryConnect fails.
func (c *Connection) SetConnected(connected, refuse bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
	c.connectErr = refuse
}

func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Connection) TryConnect(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++
	if c.connectErr {
		return false
	}
	c.connected = true
	return true
}

func (c *Connection) ConnectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectCalls
}

func (c *Connection) CreateChannel() (connection.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, connection.ErrConnectionUnavailable
	}
	ch := &Channel{broker: c.Broker}
	c.channels = append(c.channels, ch)
	return ch, nil
}

// Channels returns every channel handed out so far.
func (c *Connection) Channels() []*Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Channel(nil), c.channels...)
}

func (c *Connection) ReportCallbackFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbackFailure = append(c.callbackFailure, err)
}

func (c *Connection) CallbackFailures() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.callbackFailure...)
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// Acknowledger records the outcome of a delivery.
type Acknowledger struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue []bool
}

var _ amqp.Acknowledger = (*Acknowledger)(nil)

func (a *Acknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *Acknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *Acknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *Acknowledger) Acks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks
}

func (a *Acknowledger) Nacks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nacks
}

// Requeued reports whether any nack asked for requeue.
func (a *Acknowledger) Requeued() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.requeue {
		if r {
			return true
		}
	}
	return false
}

// ErrRefused is a canned dial error.
var ErrRefused = errors.New("connection refused")
