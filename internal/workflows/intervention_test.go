package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/transitiq/nervecentre/internal/adapters/memstore"
)

func TestInterventionGenerationWorkflow_RunsActivityAndReturnsCount(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	store := memstore.New()
	activities := &InterventionActivities{Store: store, Catalog: nil}
	env.RegisterActivity(activities)

	env.ExecuteWorkflow(InterventionGenerationWorkflow, InterventionGenerationInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result InterventionGenerationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, 0, result.Count, "an empty fleet with no detector findings should generate zero interventions")
}

func TestGenerateInterventionsActivity_EmptyStoreProducesNoInterventions(t *testing.T) {
	store := memstore.New()
	activities := &InterventionActivities{Store: store, Catalog: nil}

	result, err := activities.GenerateInterventions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.Count)
}
