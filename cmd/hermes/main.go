package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/fortuna/hermes/internal/api"
	"github.com/fortuna/hermes/internal/audit"
	"github.com/fortuna/hermes/internal/browser"
	"github.com/fortuna/hermes/internal/cache"
	"github.com/fortuna/hermes/internal/config"
	"github.com/fortuna/hermes/internal/export"
	"github.com/fortuna/hermes/internal/ingest/redscore"
	"github.com/fortuna/hermes/internal/leagues"
	"github.com/fortuna/hermes/internal/pipeline"
	"github.com/fortuna/hermes/internal/store"
	"github.com/fortuna/hermes/internal/store/repository"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "hermes").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration failed")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	db, err := store.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("schema setup failed")
	}

	allow := leagues.Default()
	if cfg.AllowlistFile != "" {
		allow, err = leagues.LoadFile(cfg.AllowlistFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.AllowlistFile).Msg("allow list load failed")
		}
	}
	logger.Info().Int("leagues", allow.Len()).Msg("allow list loaded")

	sink := audit.NewSink(cfg.AuditDir, logger)
	defer sink.Close()

	var linkCache redscore.LinkCache
	if cfg.RedisURL != "" {
		rc, err := cache.NewLinkCache(cfg.RedisURL, cfg.LinkCacheTTL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("link cache unavailable, continuing without")
		} else {
			defer rc.Close()
			linkCache = rc
		}
	}

	repo := repository.NewMatchRepository(db)
	exporter := export.NewCSVExporter(cfg.ExportDir, repo, logger)

	status := api.NewStatusServer(cfg.StatusAddr, db, logger)
	go func() {
		if err := status.Start(); err != nil {
			logger.Error().Err(err).Msg("status server stopped")
		}
	}()

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Hour)
		defer cancel()

		sess, err := browser.NewSession(browser.Config{
			Headless:    cfg.Headless,
			NavTimeout:  cfg.NavTimeout,
			WaitTimeout: cfg.WaitTimeout,
		})
		if err != nil {
			logger.Error().Err(err).Msg("browser startup failed, skipping run")
			return
		}
		defer sess.Close()

		schedule := redscore.NewScheduleScraper(sess, allow, sink, logger, redscore.ScheduleConfig{
			URL:     cfg.ScheduleURL,
			BaseURL: cfg.BaseURL,
		})
		links := redscore.NewLinkResolver(sess, linkCache, sink, logger, redscore.ResolverConfig{
			BaseURL:      cfg.BaseURL,
			Workers:      cfg.ResolverWorkers,
			Retries:      cfg.ResolverRetries,
			RetryDelay:   cfg.ResolverDelay,
			FetchTimeout: cfg.FetchTimeout,
		})
		history := redscore.NewHistoryScraper(sess, allow, sink, logger, redscore.HistoryConfig{
			MaxRows:         cfg.HistoryCap,
			LoadMoreTimeout: cfg.LoadMoreTimeout,
		})

		p := pipeline.New(schedule, links, history, repo, exporter, sink, logger)
		sum, err := p.Run(runCtx)
		if err != nil {
			logger.Error().Err(err).Msg("run failed")
		}
		if sum != nil {
			status.SetSummary(sum)
			logger.Info().
				Int("fixtures", sum.Fixtures).
				Int("appended", sum.Appended).
				Dur("took", sum.FinishedAt.Sub(sum.StartedAt)).
				Msg("run complete")
		}
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.CollectCron, run); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.CollectCron).Msg("invalid collection schedule")
	}
	scheduler.Start()
	logger.Info().Str("cron", cfg.CollectCron).Msg("collection scheduled")

	if cfg.RunOnStart {
		go run()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := status.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("status server shutdown failed")
	}
}
