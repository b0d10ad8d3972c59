package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/transitiq/nervecentre/internal/adapters/gtfsstatic"
	"github.com/transitiq/nervecentre/internal/adapters/http"
	"github.com/transitiq/nervecentre/internal/adapters/memstore"
	natsadapter "github.com/transitiq/nervecentre/internal/adapters/nats"
	"github.com/transitiq/nervecentre/internal/adapters/postgres"
	"github.com/transitiq/nervecentre/internal/adapters/valkey"
	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/pkg/config"
	"github.com/transitiq/nervecentre/internal/pkg/logging"
	"github.com/transitiq/nervecentre/internal/pkg/metrics"
	"github.com/transitiq/nervecentre/internal/pkg/telemetry"
)

const dbPoolMetricsInterval = 15 * time.Second

func main() {
	cfg, err := config.Load("nervecentre-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Server.LogLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// State store: prefer Valkey, fall back to the in-memory store so the
	// API stays usable when the cache cluster is down at boot.
	var store ports.StateStore
	valkeyStore, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, falling back to in-memory state store", "error", err)
		store = memstore.New()
	} else {
		defer valkeyStore.Close()
		store = valkeyStore
	}

	catalog := gtfsstatic.New()
	if err := catalog.Load(ctx, cfg.Catalog.URL); err != nil {
		slog.Warn("static catalog load failed, route names will fall back to raw ids", "error", err)
	}

	var archiver ports.HistoryArchiver
	if cfg.Database.Enabled() {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			slog.Warn("postgres unavailable, history archival disabled", "error", err)
		} else {
			defer db.Close()
			archiver = postgres.NewArchiver(db)
			go samplePoolMetrics(ctx, db)
		}
	}

	var audit ports.AuditPublisher
	if cfg.NATS.Enabled() {
		publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, intervention audit trail disabled", "error", err)
		} else {
			defer publisher.Close()
			audit = publisher
		}
	}

	deps := &http.Dependencies{
		Store:     store,
		Catalog:   catalog,
		Archiver:  archiver,
		Audit:     audit,
		StatsFile: cfg.Stats.FilePath,
		StartedAt: time.Now(),
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "NerveCentre API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     joinOrigins(cfg.Server.CORSOrigins),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		slog.Info("api server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// samplePoolMetrics periodically exports the pgx pool's stats to Prometheus
// until ctx is cancelled at shutdown.
func samplePoolMetrics(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(dbPoolMetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}

func joinOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	out := origins[0]
	for _, o := range origins[1:] {
		out += ", " + o
	}
	return out
}
