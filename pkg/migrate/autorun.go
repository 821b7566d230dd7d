package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shoplyft/backend/pkg/config"
	"github.com/shoplyft/backend/pkg/db"
)

// MaybeRunDev executes migrations automatically when the app is running
// in dev mode and the feature flag is enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg zerolog.Logger, client *db.Client) error {
	isDev := strings.EqualFold(cfg.App.Environment, "development")
	if !isDev || !cfg.Flags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info().Str("dir", DefaultDir).Msg("running goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info().Msg("goose migrations completed")
	return nil
}
