package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	appconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/core/config"
	otelconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/observability/config"
	otelinternal "github.com/Sokol111/ecommerce-orders-messaging/pkg/observability/internal"
)

// messagingAttributes are the only attributes kept on rabbitmq.* instruments.
// Message and order ids stay out of the metric streams.
var messagingAttributes = []attribute.Key{"event_type", "outcome"}

func newMeterProvider(ctx context.Context, cfg otelconfig.Config, appCfg appconfig.AppConfig) (*sdkmetric.MeterProvider, error) {
	res, err := otelinternal.NewResource(ctx, appCfg)
	if err != nil {
		return nil, err
	}

	exp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OtelCollectorEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: create exporter for %s: %w", cfg.OtelCollectorEndpoint, err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Metrics.Interval))),
		sdkmetric.WithResource(res),
		sdkmetric.WithView(messagingViews()...),
	), nil
}

func messagingViews() []sdkmetric.View {
	return []sdkmetric.View{
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: "rabbitmq.*"},
			sdkmetric.Stream{AttributeFilter: attribute.NewAllowKeysFilter(messagingAttributes...)},
		),
	}
}
