package logger

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/core/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("development mode", func(t *testing.T) {
		logger, level, err := newLogger(Config{Level: zapcore.DebugLevel, Development: true}, appconfig.AppConfig{})

		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.Equal(t, zapcore.DebugLevel, level.Level())
		_ = logger.Sync()
	})

	t.Run("rejects blank output path", func(t *testing.T) {
		_, _, err := newLogger(Config{OutputPaths: []string{" "}}, appconfig.AppConfig{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "outputPaths[0]")
	})
}

func TestServiceFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core).With(serviceFields(appconfig.AppConfig{
		ServiceName:    "orders-messaging",
		ServiceVersion: "1.0.0",
		Environment:    "local",
	})...)

	log.Info("started")

	assert.Equal(t, map[string]any{
		"service": "orders-messaging",
		"version": "1.0.0",
		"env":     "local",
	}, logs.AllUntimed()[0].ContextMap())
	assert.Empty(t, serviceFields(appconfig.AppConfig{}))
}

func TestNewConfig(t *testing.T) {
	t.Run("defaults when section is absent", func(t *testing.T) {
		cfg, err := newConfig(viper.New())

		require.NoError(t, err)
		assert.Equal(t, zapcore.InfoLevel, cfg.Level)
		assert.Equal(t, zapcore.ErrorLevel, cfg.StacktraceLevel)
	})

	t.Run("parses levels", func(t *testing.T) {
		v := viper.New()
		v.Set("logger.level", "debug")
		v.Set("logger.stacktraceLevel", "warn")
		v.Set("logger.development", true)

		cfg, err := newConfig(v)

		require.NoError(t, err)
		assert.Equal(t, zapcore.DebugLevel, cfg.Level)
		assert.Equal(t, zapcore.WarnLevel, cfg.StacktraceLevel)
		assert.True(t, cfg.Development)
	})

	t.Run("invalid level", func(t *testing.T) {
		v := viper.New()
		v.Set("logger.level", "loud")

		_, err := newConfig(v)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestContextLogger(t *testing.T) {
	t.Run("returns attached logger", func(t *testing.T) {
		l := zap.NewNop().With(zap.String("k", "v"))

		ctx := With(context.Background(), l)

		assert.Same(t, l, Get(ctx))
	})

	t.Run("falls back to global logger", func(t *testing.T) {
		assert.Same(t, zap.L(), Get(context.Background()))
		//nolint:staticcheck // nil context is part of the contract
		assert.Same(t, zap.L(), Get(nil))
	})
}

func TestLogThrottler_Warn(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	throttler := NewLogThrottler(zap.New(core), time.Hour)

	throttler.Warn("reconnect", "broker unreachable")
	throttler.Warn("reconnect", "broker unreachable")
	throttler.Warn("other", "different key")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
}

func TestLogThrottler_ReportsSuppressedCount(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	throttler := NewLogThrottler(zap.New(core), 20*time.Millisecond)

	throttler.Warn("outbox", "status commit failed")
	throttler.Warn("outbox", "status commit failed")
	throttler.Warn("outbox", "status commit failed")
	time.Sleep(40 * time.Millisecond)
	throttler.Warn("outbox", "status commit failed")

	warns := logs.FilterLevelExact(zapcore.WarnLevel).AllUntimed()
	require.Len(t, warns, 2)
	assert.NotContains(t, warns[0].ContextMap(), "suppressed")
	assert.Equal(t, int64(2), warns[1].ContextMap()["suppressed"])
}

func TestWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := With(context.Background(), zap.New(core).With(zap.String("queue", "orders.queue")))

	ctx = WithFields(ctx, zap.String("eventId", "evt-1"))
	Get(ctx).Info("handled")

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]any{"queue": "orders.queue", "eventId": "evt-1"}, entries[0].ContextMap())
	assert.Same(t, ctx, WithFields(ctx), "no fields keeps the context")
}
