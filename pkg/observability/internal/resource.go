package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	appconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/core/config"
)

// ServiceNamespace groups the orders services in the collector.
const ServiceNamespace = "orders"

// NewResource describes this service instance to the collector. Traces and
// metrics share it, so both are keyed by the same instance id.
func NewResource(ctx context.Context, appCfg appconfig.AppConfig) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNamespace(ServiceNamespace),
			semconv.ServiceName(appCfg.ServiceName),
			semconv.ServiceVersion(appCfg.ServiceVersion),
			semconv.ServiceInstanceID(instanceID(appCfg.ServiceName)),
			semconv.DeploymentEnvironmentName(appCfg.Environment),
			semconv.MessagingSystemRabbitMQ,
		),
	)
	// A detector that cannot read the host or process still leaves a usable resource.
	if errors.Is(err, resource.ErrPartialResource) {
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("observability: build resource for %s: %w", appCfg.ServiceName, err)
	}
	return res, nil
}

// instanceID is <service>@<host>:<pid>. Replicas of the consumer share a
// queue, so the host alone does not tell them apart.
func instanceID(service string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s@%s:%d", service, host, os.Getpid())
}
