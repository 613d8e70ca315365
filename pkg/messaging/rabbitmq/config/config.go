package config

import (
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	VirtualHost string `mapstructure:"virtual-host"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`

	// Namespace prefixes every routing key, e.g. "prod" gives "prod.orders.<type>".
	Namespace string `mapstructure:"namespace"`

	ExchangeName       string   `mapstructure:"exchange-name"`
	ExchangeType       string   `mapstructure:"exchange-type"`
	QueueName          string   `mapstructure:"queue-name"`
	DeadLetterExchange string   `mapstructure:"dead-letter-exchange"`
	DeadLetterQueue    string   `mapstructure:"dead-letter-queue"`
	Bindings           []string `mapstructure:"bindings"`

	// Connection retry
	RetryCount               int           `mapstructure:"retry-count"`
	RetryDelay               time.Duration `mapstructure:"retry-delay"`
	AutomaticRecoveryEnabled *bool         `mapstructure:"automatic-recovery-enabled"`
	NetworkRecoveryInterval  time.Duration `mapstructure:"network-recovery-interval"`

	// Publisher. Each publish waits this long for the broker confirm.
	PublishConfirmTimeout time.Duration `mapstructure:"publish-confirm-timeout"`

	// Consumer
	PrefetchCount  int           `mapstructure:"prefetch-count"`
	MaxRetryCount  int           `mapstructure:"max-retry-count"`
	HandlerTimeout time.Duration `mapstructure:"handler-timeout"`
}

// AutoRecovery reports whether connection loss triggers an automatic reconnect.
func (c Config) AutoRecovery() bool {
	return c.AutomaticRecoveryEnabled == nil || *c.AutomaticRecoveryEnabled
}

// URI returns the AMQP connection URI.
func (c Config) URI() string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Vhost:    c.VirtualHost,
	}.String()
}

// RoutingKeyPrefix returns "<namespace>." or "" when no namespace is set.
func (c Config) RoutingKeyPrefix() string {
	if c.Namespace == "" {
		return ""
	}
	return c.Namespace + "."
}

func newConfig(v *viper.Viper, log *zap.Logger) (Config, error) {
	var cfg Config
	sub := v.Sub("rabbitmq")
	if sub == nil {
		sub = viper.New()
	}
	// max-retry-count 0 is meaningful (dead-letter on the first Retry).
	sub.SetDefault("max-retry-count", defaultMaxRetryCount)
	if err := sub.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load rabbitmq config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	log.Info("loaded rabbitmq config",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("virtual-host", cfg.VirtualHost),
		zap.String("exchange", cfg.ExchangeName),
		zap.String("queue", cfg.QueueName),
		zap.Strings("bindings", cfg.Bindings),
	)
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in [1, 65535], got %d", c.Port))
	}
	switch c.ExchangeType {
	case amqp.ExchangeDirect, amqp.ExchangeTopic, amqp.ExchangeFanout, amqp.ExchangeHeaders:
	default:
		errs = append(errs, fmt.Errorf("unsupported exchange-type %q", c.ExchangeType))
	}
	if c.ExchangeName == "" || c.QueueName == "" {
		errs = append(errs, errors.New("exchange-name and queue-name are required"))
	}
	if c.DeadLetterExchange == "" || c.DeadLetterQueue == "" {
		errs = append(errs, errors.New("dead-letter-exchange and dead-letter-queue are required"))
	}
	if c.RetryCount < minRetryCount || c.RetryCount > maxRetryCount {
		errs = append(errs, fmt.Errorf("retry-count must be in [%d, %d], got %d", minRetryCount, maxRetryCount, c.RetryCount))
	}
	if c.RetryDelay < minRetryDelay || c.RetryDelay > maxRetryDelay {
		errs = append(errs, fmt.Errorf("retry-delay must be in [%s, %s], got %s", minRetryDelay, maxRetryDelay, c.RetryDelay))
	}
	if c.NetworkRecoveryInterval < minNetworkRecoveryInterval || c.NetworkRecoveryInterval > maxNetworkRecoveryInterval {
		errs = append(errs, fmt.Errorf("network-recovery-interval must be in [%s, %s], got %s",
			minNetworkRecoveryInterval, maxNetworkRecoveryInterval, c.NetworkRecoveryInterval))
	}
	if c.PrefetchCount < minPrefetchCount || c.PrefetchCount > maxPrefetchCount {
		errs = append(errs, fmt.Errorf("prefetch-count must be in [%d, %d], got %d", minPrefetchCount, maxPrefetchCount, c.PrefetchCount))
	}
	if c.PublishConfirmTimeout < minPublishConfirmTimeout || c.PublishConfirmTimeout > maxPublishConfirmTimeout {
		errs = append(errs, fmt.Errorf("publish-confirm-timeout must be in [%s, %s], got %s",
			minPublishConfirmTimeout, maxPublishConfirmTimeout, c.PublishConfirmTimeout))
	}
	if c.HandlerTimeout < minHandlerTimeout || c.HandlerTimeout > maxHandlerTimeout {
		errs = append(errs, fmt.Errorf("handler-timeout must be in [%s, %s], got %s", minHandlerTimeout, maxHandlerTimeout, c.HandlerTimeout))
	}
	if c.MaxRetryCount < 0 || c.MaxRetryCount > maxMaxRetryCount {
		errs = append(errs, fmt.Errorf("max-retry-count must be in [0, %d], got %d", maxMaxRetryCount, c.MaxRetryCount))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid rabbitmq config: %w", errors.Join(errs...))
	}
	return nil
}
