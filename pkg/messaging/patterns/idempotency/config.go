package idempotency

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultRetention       = 30 * 24 * time.Hour
	defaultCleanupInterval = time.Hour
)

type Config struct {
	// Retention is how long processed-event markers are kept. A redelivery
	// older than this is applied again.
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup-interval"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if sub := v.Sub("idempotency"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load idempotency config: %w", err)
		}
	}
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

func applyDefaults(cfg *Config) {
	if cfg.Retention == 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Retention <= 0 {
		errs = append(errs, fmt.Errorf("idempotency: retention must be positive, got %s", c.Retention))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("idempotency: cleanup-interval must be positive, got %s", c.CleanupInterval))
	}
	return errors.Join(errs...)
}
