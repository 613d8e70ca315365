package catalog

import (
	"context"
	"embed"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence/mongo"
)

//go:embed migrations/*.json
var migrationsFS embed.FS

// NewCatalogModule provides the Repository and applies the catalog migrations on start.
func NewCatalogModule() fx.Option {
	return fx.Options(
		fx.Provide(newRepository),
		fx.Invoke(runMigrations),
	)
}

func runMigrations(lc fx.Lifecycle, log *zap.Logger, migrator mongo.Migrator) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("running catalog migrations")
			return migrator.Up(ctx, "catalog", migrationsFS, "migrations")
		},
	})
}
