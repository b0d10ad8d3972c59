package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/transitiq/nervecentre/internal/adapters/gtfsrt"
	"github.com/transitiq/nervecentre/internal/adapters/gtfsstatic"
	"github.com/transitiq/nervecentre/internal/adapters/memstore"
	"github.com/transitiq/nervecentre/internal/adapters/postgres"
	"github.com/transitiq/nervecentre/internal/adapters/valkey"
	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/core/usecases"
	"github.com/transitiq/nervecentre/internal/pkg/config"
	"github.com/transitiq/nervecentre/internal/pkg/logging"
	"github.com/transitiq/nervecentre/internal/pkg/telemetry"
)

// main runs the two background loops that keep the shared state store
// current: the feed poller (fetch, merge, publish, every Feed.PollInterval)
// and the stats snapshotter (derive and append one StatsRecord every
// Stats.Interval). Neither talks to the HTTP layer directly; cmd/api reads
// whatever this process last wrote.
func main() {
	cfg, err := config.Load("nervecentre-realtime")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Server.LogLevel, "json")
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			logger.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	var store ports.StateStore
	valkeyStore, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		logger.Warn("valkey unavailable, falling back to in-memory state store", "error", err)
		store = memstore.New()
	} else {
		defer valkeyStore.Close()
		store = valkeyStore
	}

	catalog := gtfsstatic.New()
	if err := catalog.Load(ctx, cfg.Catalog.URL); err != nil {
		logger.Warn("static catalog load failed, route names will fall back to raw ids", "error", err)
	}

	var archiver ports.HistoryArchiver
	if cfg.Database.Enabled() {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			logger.Warn("postgres unavailable, history archival disabled", "error", err)
		} else {
			defer db.Close()
			archiver = postgres.NewArchiver(db)
		}
	}

	feed := gtfsrt.New(cfg.Feed.VehiclePositionsURL, cfg.Feed.TripUpdatesURL, cfg.Feed.APIKey)
	if cfg.Feed.APIKey == "" {
		logger.Warn("feed.api_key is not set; upstream requests will likely be rejected")
	}

	poller := &usecases.Poller{
		Store:        store,
		Catalog:      catalog,
		Feed:         feed,
		Archiver:     archiver,
		BaseInterval: cfg.Feed.PollInterval,
		Logger:       logger.With("component", "poller"),
	}

	snapshotter := &usecases.StatsSnapshotter{
		Store:    store,
		Catalog:  catalog,
		Archiver: archiver,
		FilePath: cfg.Stats.FilePath,
		Interval: cfg.Stats.Interval,
		Logger:   logger.With("component", "stats_snapshotter"),
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		logger.Info("feed poller starting", "interval", cfg.Feed.PollInterval)
		poller.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		logger.Info("stats snapshotter starting", "interval", cfg.Stats.Interval, "file", cfg.Stats.FilePath)
		snapshotter.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received, stopping loops...", "signal", sig.String())
	cancel()
	wg.Wait()

	logger.Info("realtime service stopped")
}
