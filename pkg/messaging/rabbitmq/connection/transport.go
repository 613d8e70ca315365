package connection

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel used by the publisher and consumer.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	// Confirm puts the channel into publisher confirm mode.
	Confirm(noWait bool) error
	// PublishWithDeferredConfirmWithContext publishes on a channel in confirm
	// mode and returns the pending broker confirmation.
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (Confirmation, error)
	Close() error
}

// Confirmation is a broker ack or nack that has not arrived yet.
type Confirmation interface {
	// WaitContext blocks until the broker answered or ctx is done. It reports
	// true for an ack.
	WaitContext(ctx context.Context) (bool, error)
}

var errNotInConfirmMode = errors.New("channel is not in confirm mode")

// amqpChannel adapts *amqp.Channel to Channel.
type amqpChannel struct {
	*amqp.Channel
}

var _ Confirmation = (*amqp.DeferredConfirmation)(nil)

func (c amqpChannel) PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (Confirmation, error) {
	dc, err := c.Channel.PublishWithDeferredConfirmWithContext(ctx, exchange, key, mandatory, immediate, msg)
	if err != nil {
		return nil, err
	}
	// amqp091 returns a nil confirmation outside confirm mode.
	if dc == nil {
		return nil, errNotInConfirmMode
	}
	return dc, nil
}

// Transport is an open broker connection.
type Transport interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	NotifyBlocked(receiver chan amqp.Blocking) chan amqp.Blocking
	IsClosed() bool
	Close() error
}

// Dialer opens a Transport.
type Dialer func(uri string, cfg amqp.Config) (Transport, error)

// DialAMQP is the Dialer backed by amqp091-go.
func DialAMQP(uri string, cfg amqp.Config) (Transport, error) {
	conn, err := amqp.DialConfig(uri, cfg)
	if err != nil {
		return nil, err
	}
	return &amqpTransport{conn: conn}, nil
}

type amqpTransport struct {
	conn *amqp.Connection
}

func (t *amqpTransport) Channel() (Channel, error) {
	ch, err := t.conn.Channel()
	if err != nil {
		return nil, err
	}
	return amqpChannel{Channel: ch}, nil
}

func (t *amqpTransport) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return t.conn.NotifyClose(receiver)
}

func (t *amqpTransport) NotifyBlocked(receiver chan amqp.Blocking) chan amqp.Blocking {
	return t.conn.NotifyBlocked(receiver)
}

func (t *amqpTransport) IsClosed() bool {
	return t.conn.IsClosed()
}

func (t *amqpTransport) Close() error {
	return t.conn.Close()
}
