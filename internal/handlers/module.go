package handlers

import "go.uber.org/fx"

// NewHandlersModule registers the integration event handlers with the consumer Registry.
func NewHandlersModule() fx.Option {
	return fx.Options(
		fx.Provide(newHandlers),
		fx.Invoke(register),
	)
}
