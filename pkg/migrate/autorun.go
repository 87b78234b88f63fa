package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/db"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on startup in dev when
// PROPPILOT_AUTO_MIGRATE is set. Other environments run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.FeatureFlags.UseSQLite {
		ctx = logg.WithFields(ctx, map[string]any{"driver": "sqlite", "path": cfg.DB.SQLitePath})
		if err := AutoMigrateSQLite(ctx, client.DB()); err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
		logg.Info(ctx, "migrate.autorun")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	applied, err := Run(ctx, sqlDB, DefaultDir, "up")
	if err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"driver":  "postgres",
		"dir":     DefaultDir,
		"applied": len(applied),
	}), "migrate.autorun")
	return nil
}
