package modules

import (
	"go.uber.org/fx"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core"
)

// NewCoreModule provides config, logger, readiness and background workers.
func NewCoreModule(opts ...core.Option) fx.Option {
	return core.NewCoreModule(opts...)
}
