package logger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	appconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/core/config"
)

type moduleOptions struct {
	config *Config
}

// Option configures the logging module.
type Option func(*moduleOptions)

// WithLoggerConfig provides a static logger Config instead of reading viper.
func WithLoggerConfig(cfg Config) Option {
	return func(o *moduleOptions) {
		o.config = &cfg
	}
}

// NewZapLoggingModule provides a configured *zap.Logger and routes fx events through it.
func NewZapLoggingModule(opts ...Option) fx.Option {
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return fx.Options(
		fx.Provide(
			func(v *viper.Viper) (Config, error) {
				if o.config != nil {
					return *o.config, nil
				}
				return newConfig(v)
			},
			provideLogger,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}

type loggerParams struct {
	fx.In
	Lc   fx.Lifecycle
	Conf Config
	App  appconfig.AppConfig `optional:"true"`
}

func provideLogger(p loggerParams) (*zap.Logger, error) {
	logger, _, err := newLogger(p.Conf, p.App)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return ignoreSyncError(logger.Sync())
		},
	})

	return logger, nil
}

// stderr/stdout cannot be synced on most platforms
func ignoreSyncError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && (errors.Is(pathErr.Err, syscall.EINVAL) || errors.Is(pathErr.Err, syscall.ENOTTY)) {
		return nil
	}
	return err
}
