package core

import (
	"time"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/health"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/logger"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/worker"
	"go.uber.org/fx"
)

type coreOptions struct {
	appConfig          *config.AppConfig
	loggerConfig       *logger.Config
	configPath         string
	disableDotEnv      bool
	disableViperConfig bool
}

// Option is a functional option for configuring the core module.
type Option func(*coreOptions)

// WithAppConfig provides a static AppConfig (useful for tests).
func WithAppConfig(cfg config.AppConfig) Option {
	return func(opts *coreOptions) {
		opts.appConfig = &cfg
	}
}

// WithLoggerConfig provides a static logger Config (useful for tests).
func WithLoggerConfig(cfg logger.Config) Option {
	return func(opts *coreOptions) {
		opts.loggerConfig = &cfg
	}
}

// WithConfigFile reads configuration from the given file instead of CONFIG_FILE.
func WithConfigFile(path string) Option {
	return func(opts *coreOptions) {
		opts.configPath = path
	}
}

// WithoutEnvFile disables loading of .env file.
func WithoutEnvFile() Option {
	return func(opts *coreOptions) {
		opts.disableDotEnv = true
	}
}

// WithoutConfigFile disables loading of the YAML config file.
func WithoutConfigFile() Option {
	return func(opts *coreOptions) {
		opts.disableViperConfig = true
	}
}

// NewCoreModule provides config, logger, readiness and the background worker group.
//
//	// Production
//	core.NewCoreModule()
//
//	// Testing
//	core.NewCoreModule(
//	    core.WithAppConfig(config.AppConfig{...}),
//	    core.WithLoggerConfig(logger.Config{...}),
//	    core.WithoutEnvFile(),
//	    core.WithoutConfigFile(),
//	)
func NewCoreModule(opts ...Option) fx.Option {
	cfg := &coreOptions{}
	for _, opt := range opts {
		opt(cfg)
	}

	return fx.Options(
		fx.StartTimeout(2*time.Minute),
		fx.StopTimeout(time.Minute),

		dotEnvModule(cfg),
		viperModule(cfg),
		appConfigModule(cfg),
		loggerModule(cfg),
		health.NewReadinessModule(),
		worker.NewWorkersModule(),
	)
}

func dotEnvModule(cfg *coreOptions) fx.Option {
	if cfg.disableDotEnv {
		return fx.Options()
	}
	return config.NewDotEnvModule()
}

func viperModule(cfg *coreOptions) fx.Option {
	switch {
	case cfg.disableViperConfig:
		return config.NewViperModule(config.WithoutConfigFile())
	case cfg.configPath != "":
		return config.NewViperModule(config.WithConfigPath(cfg.configPath))
	default:
		return config.NewViperModule()
	}
}

func appConfigModule(cfg *coreOptions) fx.Option {
	if cfg.appConfig != nil {
		return config.NewAppConfigModule(config.WithAppConfig(*cfg.appConfig))
	}
	return config.NewAppConfigModule()
}

func loggerModule(cfg *coreOptions) fx.Option {
	if cfg.loggerConfig != nil {
		return logger.NewZapLoggingModule(logger.WithLoggerConfig(*cfg.loggerConfig))
	}
	return logger.NewZapLoggingModule()
}
