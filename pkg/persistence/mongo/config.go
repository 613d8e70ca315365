package mongo

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ConnectionString string `mapstructure:"connection-string"`
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	ReplicaSet       string `mapstructure:"replica-set"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	Database         string `mapstructure:"database"`
	DirectConnection bool   `mapstructure:"direct-connection"`

	// Connection pool
	MaxPoolSize         uint64        `mapstructure:"max-pool-size"`
	MinPoolSize         uint64        `mapstructure:"min-pool-size"`
	MaxConnIdleTime     time.Duration `mapstructure:"max-conn-idle-time"`
	ConnectTimeout      time.Duration `mapstructure:"connect-timeout"`
	ServerSelectTimeout time.Duration `mapstructure:"server-select-timeout"`

	// QueryTimeout bounds every single-shot collection call.
	QueryTimeout time.Duration `mapstructure:"query-timeout"`

	// TxMaxAttempts is how many times a transaction failing with a transient label is re-run.
	TxMaxAttempts int `mapstructure:"tx-max-attempts"`

	Migrations MigrationsConfig `mapstructure:"migrations"`
}

type MigrationsConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	LockTimeout time.Duration `mapstructure:"lock-timeout"`
}

func newConfig(v *viper.Viper) (Config, error) {
	cfg := Config{Migrations: MigrationsConfig{Enabled: true}}
	if sub := v.Sub("mongo"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load mongo config: %w", err)
		}
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 100
	}
	if cfg.MinPoolSize == 0 {
		cfg.MinPoolSize = 10
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ServerSelectTimeout == 0 {
		cfg.ServerSelectTimeout = 30 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.TxMaxAttempts == 0 {
		cfg.TxMaxAttempts = 3
	}
	if cfg.Migrations.LockTimeout == 0 {
		cfg.Migrations.LockTimeout = time.Minute
	}
}

func (c Config) Validate() error {
	if c.ConnectionString == "" && (c.Host == "" || c.Port == 0) {
		return errors.New("mongo: host and port are required when connection-string is empty")
	}
	if c.Database == "" {
		return errors.New("mongo: database is required")
	}
	if c.MinPoolSize > c.MaxPoolSize {
		return fmt.Errorf("mongo: min-pool-size %d exceeds max-pool-size %d", c.MinPoolSize, c.MaxPoolSize)
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("mongo: tx-max-attempts must be positive, got %d", c.TxMaxAttempts)
	}
	return nil
}

// BuildURI returns the connection string, composing it from the discrete fields
// unless ConnectionString is set.
func (c Config) BuildURI() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}

	auth := ""
	if c.Username != "" {
		auth = url.UserPassword(c.Username, c.Password).String() + "@"
	}

	uri := fmt.Sprintf("mongodb://%s%s:%d/%s", auth, c.Host, c.Port, c.Database)

	params := []string{}
	if c.ReplicaSet != "" {
		params = append(params, "replicaSet="+c.ReplicaSet)
	}
	if c.DirectConnection {
		params = append(params, "directConnection=true")
	}
	if len(params) > 0 {
		uri += "?" + strings.Join(params, "&")
	}
	return uri
}
