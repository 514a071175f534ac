package ports

import (
	"context"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

// MarketRepository persists the market catalog.
type MarketRepository interface {
	UpsertBatch(ctx context.Context, markets []domain.Market) error
	GetByID(ctx context.Context, id string) (*domain.Market, error)
	// List returns a page of markets, optionally filtered by state, and the total count.
	List(ctx context.Context, state string, offset, limit int) ([]domain.Market, int, error)
	ListByStates(ctx context.Context, states []string) ([]domain.Market, error)
	FindNearby(ctx context.Context, lat, lon, radiusMiles float64, limit int) ([]domain.Market, error)
	InBounds(ctx context.Context, bounds domain.ViewportBounds, limit int) ([]domain.Market, error)
}

// MarketSource fetches listings from the upstream market directory.
type MarketSource interface {
	ByState(ctx context.Context, state string) ([]domain.RawMarket, error)
	ByCoordinates(ctx context.Context, lat, lon, radiusMiles float64) ([]domain.RawMarket, error)
}
