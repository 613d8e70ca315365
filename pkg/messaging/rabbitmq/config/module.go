package config

import "go.uber.org/fx"

type moduleOptions struct {
	config *Config
}

type Option func(*moduleOptions)

// WithRabbitMQConfig provides a static Config instead of loading it from viper.
// Unset fields still receive defaults.
func WithRabbitMQConfig(cfg Config) Option {
	return func(o *moduleOptions) {
		o.config = &cfg
	}
}

func NewRabbitMQConfigModule(opts ...Option) fx.Option {
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if o.config != nil {
		cfg := *o.config
		applyDefaults(&cfg)
		return fx.Provide(func() (Config, error) {
			return cfg, cfg.Validate()
		})
	}
	return fx.Provide(newConfig)
}
