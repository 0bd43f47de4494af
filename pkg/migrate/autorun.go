package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/miyf-books/pkg/config"
	"github.com/angelmondragon/miyf-books/pkg/db"
	"github.com/angelmondragon/miyf-books/pkg/logger"
)

// MaybeRun applies pending migrations at startup when MIYF_AUTO_MIGRATE is
// set. A sqlite store is always migrated: it is a local file that starts empty.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !shouldAutoMigrate(cfg, client.Dialect()) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.Dialect()})
	logg.Info(ctx, "applying row store migrations")

	if err := Run(ctx, sqlDB, client.Dialect(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}

func shouldAutoMigrate(cfg *config.Config, dialect string) bool {
	return cfg.Store.AutoMigrate || dialect == config.StoreDriverSQLite
}
