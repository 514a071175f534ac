package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/marketmap/internal/core/usecases"
)

// CatalogActivities holds the activity implementations for the catalog sync workflow.
type CatalogActivities struct {
	Catalog *usecases.CatalogService
	Markets *usecases.MarketService
}

// SyncState fetches one state's listings and stores them. It returns the
// number of markets written.
func (a *CatalogActivities) SyncState(ctx context.Context, state string) (int, error) {
	n, err := a.Catalog.SyncState(ctx, state)
	if err != nil {
		return 0, fmt.Errorf("sync %s: %w", state, err)
	}
	activity.GetLogger(ctx).Info("state synced", "state", state, "markets", n)
	return n, nil
}

// InvalidateState drops cached region loads of a state so clients see the
// new listings.
func (a *CatalogActivities) InvalidateState(ctx context.Context, state string) error {
	if a.Markets != nil {
		a.Markets.InvalidateState(ctx, state)
	}
	return nil
}
