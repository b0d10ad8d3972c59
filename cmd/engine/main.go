package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/transitiq/nervecentre/internal/adapters/gtfsstatic"
	"github.com/transitiq/nervecentre/internal/adapters/memstore"
	"github.com/transitiq/nervecentre/internal/adapters/valkey"
	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/pkg/config"
	"github.com/transitiq/nervecentre/internal/pkg/logging"
	"github.com/transitiq/nervecentre/internal/workflows"
)

const (
	taskQueue    = "intervention-generation-queue"
	scheduleID   = "intervention-generation-schedule"
	scheduleSpan = 60 * time.Second
)

// main runs a Temporal worker for the intervention generation workflow and
// ensures a schedule exists that invokes it once a minute. This is the
// scheduled-trigger path; cmd/api's refresh=true query param runs the same
// detector-to-engine composition on demand, directly, without Temporal.
func main() {
	cfg, err := config.Load("nervecentre-engine")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Server.LogLevel, "json")
	logger := slog.Default()

	ctx := context.Background()

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

	c, err := client.Dial(client.Options{
		HostPort: "localhost:7233",
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if err := ensureSchedule(ctx, c); err != nil {
		logger.Warn("schedule setup failed, workflow must be started manually", "error", err)
	}

	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.InterventionGenerationWorkflow)
	w.RegisterActivity(&workflows.InterventionActivities{
		Store:   store,
		Catalog: catalog,
	})

	logger.Info("engine worker starting", "task_queue", taskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// ensureSchedule creates the recurring schedule if it doesn't already
// exist. Re-running the binary against a live Temporal server is expected
// to be idempotent, so an AlreadyExists error is swallowed.
func ensureSchedule(ctx context.Context, c client.Client) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: scheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{
				{Every: scheduleSpan},
			},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        "intervention-generation",
			Workflow:  workflows.InterventionGenerationWorkflow,
			Args:      []interface{}{workflows.InterventionGenerationInput{}},
			TaskQueue: taskQueue,
		},
		Overlap: client.ScheduleOverlapSkip,
	})
	if err != nil {
		if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
			return nil
		}
		return err
	}
	return nil
}
