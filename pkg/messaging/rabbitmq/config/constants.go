package config

import "time"

const (
	// Default values.
	defaultHost                    = "localhost"
	defaultPort                    = 5672
	defaultVirtualHost             = "/"
	defaultUsername                = "guest"
	defaultPassword                = "guest"
	defaultExchangeName            = "events"
	defaultExchangeType            = "topic"
	defaultQueueName               = "orders.queue"
	defaultDeadLetterExchange      = "dlx"
	defaultDeadLetterQueue         = "orders.dlq"
	defaultRetryCount              = 5
	defaultRetryDelay              = 3 * time.Second
	defaultNetworkRecoveryInterval = 10 * time.Second
	defaultPrefetchCount           = 10
	defaultMaxRetryCount           = 3
	defaultPublishConfirmTimeout   = 5 * time.Second
	defaultHandlerTimeout          = 30 * time.Second

	// Validation bounds.
	minRetryCount              = 1
	maxRetryCount              = 100
	minRetryDelay              = 100 * time.Millisecond
	maxRetryDelay              = 5 * time.Minute
	minNetworkRecoveryInterval = 100 * time.Millisecond
	maxNetworkRecoveryInterval = 10 * time.Minute
	minPrefetchCount           = 1
	maxPrefetchCount           = 10000
	maxMaxRetryCount           = 20
	minPublishConfirmTimeout   = 100 * time.Millisecond
	maxPublishConfirmTimeout   = time.Minute
	minHandlerTimeout          = time.Second
	maxHandlerTimeout          = 10 * time.Minute
)

// Source services whose routing keys the order service subscribes to.
var defaultBindingServices = []string{"users", "products", "inventory"}
