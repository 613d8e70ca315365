package modules

import (
	"go.uber.org/fx"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence/mongo"
)

// NewPersistenceModule provides mongo, the transaction manager and the migrator.
func NewPersistenceModule() fx.Option {
	return fx.Options(
		mongo.NewMongoModule(),
	)
}
