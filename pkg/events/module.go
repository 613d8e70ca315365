package events

import "go.uber.org/fx"

// NewEventsModule provides the Registry of every known integration event.
func NewEventsModule() fx.Option {
	return fx.Provide(NewDefaultRegistry)
}
