package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/core/config"
)

// newLogger builds the process logger. Every entry carries the service
// identity, since consumer replicas of several services share one log index.
func newLogger(conf Config, app appconfig.AppConfig) (*zap.Logger, zap.AtomicLevel, error) {
	if err := conf.Validate(); err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("logger configuration validation failed: %w", err)
	}

	var cfg zap.Config

	if conf.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	atomicLevel := zap.NewAtomicLevelAt(conf.Level)
	cfg.Level = atomicLevel
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if len(conf.OutputPaths) > 0 {
		cfg.OutputPaths = conf.OutputPaths
	}
	if len(conf.ErrorOutputPaths) > 0 {
		cfg.ErrorOutputPaths = conf.ErrorOutputPaths
	}

	logger, err := cfg.Build(
		zap.AddCaller(),
		zap.AddStacktrace(conf.StacktraceLevel),
		zap.Fields(serviceFields(app)...),
	)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	zap.ReplaceGlobals(logger)

	logger.Info("logger initialized",
		zap.String("level", conf.Level.String()),
		zap.Bool("development", conf.Development),
	)

	return logger, atomicLevel, nil
}

func serviceFields(app appconfig.AppConfig) []zap.Field {
	var fields []zap.Field
	if app.ServiceName != "" {
		fields = append(fields, zap.String("service", app.ServiceName))
	}
	if app.ServiceVersion != "" {
		fields = append(fields, zap.String("version", app.ServiceVersion))
	}
	if app.Environment != "" {
		fields = append(fields, zap.String("env", app.Environment))
	}
	return fields
}
