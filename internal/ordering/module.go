package ordering

import "go.uber.org/fx"

func NewOrderingModule() fx.Option {
	return fx.Provide(newService)
}
