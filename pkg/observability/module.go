// Package observability wires OpenTelemetry tracing and metrics.
//
//	// Production: loads the "observability" section from viper
//	observability.NewObservabilityModule()
//
//	// Tests
//	observability.NewObservabilityModule(
//	    observability.WithoutTracing(),
//	    observability.WithoutMetrics(),
//	)
package observability

import (
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/observability/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/observability/metrics"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/observability/tracing"
	"go.uber.org/fx"
)

// observabilityOptions holds internal configuration for the observability module.
type observabilityOptions struct {
	config         *config.Config
	disableTracing bool
	disableMetrics bool
}

// Option is a functional option for configuring the observability module.
type Option func(*observabilityOptions)

// WithConfig provides a static observability Config (useful for tests).
// When set, the observability configuration will not be loaded from viper.
func WithConfig(cfg config.Config) Option {
	return func(opts *observabilityOptions) {
		opts.config = &cfg
	}
}

// WithoutTracing disables tracing regardless of configuration.
// Useful for tests where tracing is not needed.
func WithoutTracing() Option {
	return func(opts *observabilityOptions) {
		opts.disableTracing = true
	}
}

// WithoutMetrics disables metrics regardless of configuration.
// Useful for tests where metrics are not needed.
func WithoutMetrics() Option {
	return func(opts *observabilityOptions) {
		opts.disableMetrics = true
	}
}

// NewObservabilityModule provides the TracerProvider and MeterProvider.
func NewObservabilityModule(opts ...Option) fx.Option {
	cfg := &observabilityOptions{}
	for _, opt := range opts {
		opt(cfg)
	}

	return fx.Options(
		configModule(cfg),
		tracing.NewTracingModule(),
		metrics.NewMetricsModule(),
	)
}

func configModule(opts *observabilityOptions) fx.Option {
	var configOpts []config.Option

	if opts.config != nil {
		configOpts = append(configOpts, config.WithConfig(*opts.config))
	}
	if opts.disableTracing {
		configOpts = append(configOpts, config.WithDisableTracing())
	}
	if opts.disableMetrics {
		configOpts = append(configOpts, config.WithDisableMetrics())
	}

	return config.NewObservabilityConfigModule(configOpts...)
}
