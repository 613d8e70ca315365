package config

import "time"

const (
	DefaultMetricsInterval = 10 * time.Second
	DefaultSampleRatio     = 1.0

	// DefaultShutdownTimeout bounds the flush of pending spans and metrics on stop.
	DefaultShutdownTimeout = 5 * time.Second

	DefaultRuntimeStatsInterval = time.Second

	// Readiness component names.
	TracingComponentName = "tracing"
	MetricsComponentName = "metrics"
)

// Config holds all observability configuration.
type Config struct {
	// OtelCollectorEndpoint is the OTLP gRPC endpoint. Tracing without an
	// endpoint records spans locally; metrics require one.
	OtelCollectorEndpoint string        `mapstructure:"otel-collector-endpoint"`
	Tracing               TracingConfig `mapstructure:"tracing"`
	Metrics               MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// SampleRatio is the fraction of root traces recorded. Sampled parents,
	// such as a trace continued from message headers, are always followed.
	SampleRatio float64 `mapstructure:"sample-ratio"`
}

type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}
