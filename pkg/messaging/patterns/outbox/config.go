package outbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 10 * time.Second
	defaultRetention    = 7 * 24 * time.Hour

	maxBatchSize = 10000
)

type Config struct {
	// BatchSize is the number of pending records published per cycle.
	BatchSize int `mapstructure:"batch-size"`
	// PollInterval is the pause between two cycles.
	PollInterval time.Duration `mapstructure:"poll-interval"`
	// Retention is how long published records are kept.
	Retention time.Duration `mapstructure:"retention"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if sub := v.Sub("outbox"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load outbox config: %w", err)
		}
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Retention == 0 {
		cfg.Retention = defaultRetention
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.BatchSize < 1 || c.BatchSize > maxBatchSize {
		errs = append(errs, fmt.Errorf("outbox: batch-size must be between 1 and %d, got %d", maxBatchSize, c.BatchSize))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("outbox: poll-interval must be positive, got %s", c.PollInterval))
	}
	if c.Retention <= 0 {
		errs = append(errs, fmt.Errorf("outbox: retention must be positive, got %s", c.Retention))
	}
	return errors.Join(errs...)
}
