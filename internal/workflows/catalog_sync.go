package workflows

import (
	"sort"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// CatalogSyncInput is the input for the catalog sync workflow.
type CatalogSyncInput struct {
	States []string
}

// CatalogSyncResult reports per-state outcomes.
type CatalogSyncResult struct {
	Synced map[string]int
	Failed []string
}

// CatalogSyncWorkflow refreshes the market catalog state by state. A failing
// state is recorded and skipped; the others still sync. Caches are dropped
// only for states that synced.
func CatalogSyncWorkflow(ctx workflow.Context, input CatalogSyncInput) (*CatalogSyncResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting catalog sync", "states", len(input.States))

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})

	result := &CatalogSyncResult{Synced: map[string]int{}}
	for _, state := range input.States {
		var n int
		if err := workflow.ExecuteActivity(ctx, "SyncState", state).Get(ctx, &n); err != nil {
			logger.Warn("state sync failed", "state", state, "error", err)
			result.Failed = append(result.Failed, state)
			continue
		}
		result.Synced[state] = n

		if err := workflow.ExecuteActivity(ctx, "InvalidateState", state).Get(ctx, nil); err != nil {
			logger.Warn("cache invalidation failed", "state", state, "error", err)
		}
	}
	sort.Strings(result.Failed)

	if len(result.Synced) == 0 && len(input.States) > 0 {
		return result, temporal.NewApplicationError("no state could be synced", "CatalogSyncFailed", result.Failed)
	}

	logger.Info("Catalog sync finished", "synced", len(result.Synced), "failed", len(result.Failed))
	return result, nil
}
