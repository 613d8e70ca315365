package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	appconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/core/config"
	otelconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/observability/config"
	otelinternal "github.com/Sokol111/ecommerce-orders-messaging/pkg/observability/internal"
)

// newTracerProvider samples root spans by ratio. Consumer spans follow the
// publisher's decision, so one order flow is either kept or dropped whole.
func newTracerProvider(ctx context.Context, log *zap.Logger, cfg otelconfig.Config, appCfg appconfig.AppConfig) (*sdktrace.TracerProvider, error) {
	res, err := otelinternal.NewResource(ctx, appCfg)
	if err != nil {
		return nil, err
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SampleRatio))),
		sdktrace.WithResource(res),
	}

	if cfg.OtelCollectorEndpoint == "" {
		log.Info("tracing without collector endpoint, spans are recorded but not exported")
		return sdktrace.NewTracerProvider(opts...), nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelCollectorEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter for %s: %w", cfg.OtelCollectorEndpoint, err)
	}
	return sdktrace.NewTracerProvider(append(opts, sdktrace.WithBatcher(exp))...), nil
}
