package config

import "github.com/samber/lo"

// applyDefaults fills every unset field.
func applyDefaults(cfg *Config) {
	cfg.Host = lo.CoalesceOrEmpty(cfg.Host, defaultHost)
	cfg.Port = lo.CoalesceOrEmpty(cfg.Port, defaultPort)
	cfg.VirtualHost = lo.CoalesceOrEmpty(cfg.VirtualHost, defaultVirtualHost)
	cfg.Username = lo.CoalesceOrEmpty(cfg.Username, defaultUsername)
	cfg.Password = lo.CoalesceOrEmpty(cfg.Password, defaultPassword)
	cfg.ExchangeName = lo.CoalesceOrEmpty(cfg.ExchangeName, defaultExchangeName)
	cfg.ExchangeType = lo.CoalesceOrEmpty(cfg.ExchangeType, defaultExchangeType)
	cfg.QueueName = lo.CoalesceOrEmpty(cfg.QueueName, defaultQueueName)
	cfg.DeadLetterExchange = lo.CoalesceOrEmpty(cfg.DeadLetterExchange, defaultDeadLetterExchange)
	cfg.DeadLetterQueue = lo.CoalesceOrEmpty(cfg.DeadLetterQueue, defaultDeadLetterQueue)
	cfg.RetryCount = lo.CoalesceOrEmpty(cfg.RetryCount, defaultRetryCount)
	cfg.RetryDelay = lo.CoalesceOrEmpty(cfg.RetryDelay, defaultRetryDelay)
	cfg.NetworkRecoveryInterval = lo.CoalesceOrEmpty(cfg.NetworkRecoveryInterval, defaultNetworkRecoveryInterval)
	cfg.PrefetchCount = lo.CoalesceOrEmpty(cfg.PrefetchCount, defaultPrefetchCount)
	cfg.PublishConfirmTimeout = lo.CoalesceOrEmpty(cfg.PublishConfirmTimeout, defaultPublishConfirmTimeout)
	cfg.HandlerTimeout = lo.CoalesceOrEmpty(cfg.HandlerTimeout, defaultHandlerTimeout)

	if cfg.AutomaticRecoveryEnabled == nil {
		cfg.AutomaticRecoveryEnabled = lo.ToPtr(true)
	}
	if len(cfg.Bindings) == 0 {
		prefix := cfg.RoutingKeyPrefix()
		cfg.Bindings = lo.Map(defaultBindingServices, func(service string, _ int) string {
			return prefix + service + ".*"
		})
	}
}
