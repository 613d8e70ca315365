package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

// Get returns the logger carried by ctx. Code running outside a delivery or
// an outbox cycle has none and gets the global logger. A nil ctx is allowed.
func Get(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.L()
	}
	if l, ok := ctx.Value(contextKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.L()
}

// With attaches l to ctx.
func With(ctx context.Context, l *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, l)
}

// WithFields attaches the ctx logger extended by fields, so everything below
// a handler logs with the same event identity.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return With(ctx, Get(ctx).With(fields...))
}
