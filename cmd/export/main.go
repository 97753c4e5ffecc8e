// One-shot dataset export: dumps the persisted match table to CSV and
// exits. Useful for feeding notebooks without waiting for a nightly run.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna/hermes/internal/config"
	"github.com/fortuna/hermes/internal/export"
	"github.com/fortuna/hermes/internal/store"
	"github.com/fortuna/hermes/internal/store/repository"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "hermes-export").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration failed")
	}

	db, err := store.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repo := repository.NewMatchRepository(db)
	exporter := export.NewCSVExporter(cfg.ExportDir, repo, logger)
	if err := exporter.ExportDataset(ctx); err != nil {
		logger.Fatal().Err(err).Msg("export failed")
	}

	count, err := repo.Count(ctx)
	if err == nil {
		logger.Info().Int("matches", count).Str("dir", cfg.ExportDir).Msg("dataset exported")
	}
}
