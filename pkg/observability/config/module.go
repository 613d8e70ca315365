package config

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// configOptions holds internal configuration for the observability config module.
type configOptions struct {
	config         *Config
	disableTracing bool
	disableMetrics bool
}

// Option is a functional option for configuring the observability config module.
type Option func(*configOptions)

// WithConfig provides a static Config (useful for tests).
func WithConfig(cfg Config) Option {
	return func(opts *configOptions) {
		opts.config = &cfg
	}
}

// WithDisableTracing disables tracing regardless of configuration.
func WithDisableTracing() Option {
	return func(opts *configOptions) {
		opts.disableTracing = true
	}
}

// WithDisableMetrics disables metrics regardless of configuration.
func WithDisableMetrics() Option {
	return func(opts *configOptions) {
		opts.disableMetrics = true
	}
}

// NewObservabilityConfigModule provides observability configuration, loaded
// from the "observability" section of viper unless WithConfig is given.
func NewObservabilityConfigModule(opts ...Option) fx.Option {
	cfg := &configOptions{}
	for _, opt := range opts {
		opt(cfg)
	}

	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(provideConfig),
	)
}

type configParams struct {
	fx.In
	Opts   *configOptions
	Viper  *viper.Viper `optional:"true"`
	Logger *zap.Logger
}

func provideConfig(p configParams) (Config, error) {
	var cfg Config
	if p.Opts.config != nil {
		cfg = *p.Opts.config
	} else if p.Viper != nil {
		if sub := p.Viper.Sub("observability"); sub != nil {
			if err := sub.Unmarshal(&cfg); err != nil {
				return cfg, fmt.Errorf("failed to load observability config: %w", err)
			}
		}
	}

	applyDefaults(&cfg)
	applyDisableOptions(&cfg, p.Opts)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	p.Logger.Info("loaded observability config",
		zap.Bool("tracing", cfg.Tracing.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.String("endpoint", cfg.OtelCollectorEndpoint))
	return cfg, nil
}

// Validate rejects settings the providers cannot start with.
func (c Config) Validate() error {
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("observability: tracing sample-ratio must be in (0, 1], got %v", c.Tracing.SampleRatio)
	}
	if c.Metrics.Enabled && c.OtelCollectorEndpoint == "" {
		return fmt.Errorf("observability: metrics require otel-collector-endpoint")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Metrics.Interval == 0 {
		cfg.Metrics.Interval = DefaultMetricsInterval
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultSampleRatio
	}
}

func applyDisableOptions(cfg *Config, opts *configOptions) {
	if opts.disableTracing {
		cfg.Tracing.Enabled = false
	}
	if opts.disableMetrics {
		cfg.Metrics.Enabled = false
	}
}
