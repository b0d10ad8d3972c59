package workflows

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/core/usecases"
)

// InterventionGenerationInput carries nothing: the activity re-derives
// detector state from the shared store at execution time, same as the
// request-driven refresh path in the HTTP layer.
type InterventionGenerationInput struct{}

// InterventionGenerationResult reports how many interventions the run
// produced, for the schedule's run-history view in the Temporal UI.
type InterventionGenerationResult struct {
	Count int
}

// InterventionGenerationWorkflow runs the three detectors and the
// Intervention Engine once per invocation. It is driven by a Temporal
// Schedule rather than an internal timer loop, so the workflow itself has
// no retry/backoff logic of its own — that's the activity's job.
func InterventionGenerationWorkflow(ctx workflow.Context, input InterventionGenerationInput) (InterventionGenerationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting intervention generation run")

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var result InterventionGenerationResult
	err := workflow.ExecuteActivity(ctx, "GenerateInterventions").Get(ctx, &result)
	if err != nil {
		return InterventionGenerationResult{}, err
	}

	logger.Info("intervention generation run complete", "count", result.Count)
	return result, nil
}

// InterventionActivities holds the dependencies the GenerateInterventions
// activity needs: the same state store, catalog, and now() the HTTP
// request-driven refresh path uses, so both trigger paths run the identical
// detector-to-engine composition.
type InterventionActivities struct {
	Store   ports.StateStore
	Catalog ports.StaticCatalog
}

// GenerateInterventions re-runs ghost, bunching, and crowding detection and
// feeds their output into the Intervention Engine, persisting the result as
// the new active intervention list.
func (a *InterventionActivities) GenerateInterventions(ctx context.Context) (InterventionGenerationResult, error) {
	now := time.Now()

	ghosts, err := usecases.DetectGhosts(ctx, a.Store, a.Catalog, now)
	if err != nil {
		return InterventionGenerationResult{}, err
	}
	bunching, err := usecases.DetectBunching(ctx, a.Store, a.Catalog, now)
	if err != nil {
		return InterventionGenerationResult{}, err
	}
	crowding, err := usecases.AggregateCrowding(ctx, a.Store)
	if err != nil {
		return InterventionGenerationResult{}, err
	}

	interventions, err := usecases.GenerateInterventions(ctx, a.Store, a.Catalog, ghosts, bunching, crowding, now)
	if err != nil {
		return InterventionGenerationResult{}, err
	}

	return InterventionGenerationResult{Count: len(interventions)}, nil
}
