package modules

import (
	"go.uber.org/fx"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/observability"
)

// NewObservabilityModule provides tracing and metrics.
func NewObservabilityModule(opts ...observability.Option) fx.Option {
	return observability.NewObservabilityModule(opts...)
}
