package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/ports"
	"github.com/samirrijal/marketmap/internal/pkg/geospatial"
	"github.com/samirrijal/marketmap/internal/pkg/metrics"
)

// CatalogService copies listings from the upstream directory into the catalog.
type CatalogService struct {
	source    ports.MarketSource
	markets   ports.MarketRepository
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewCatalogService creates a new CatalogService. publisher may be nil.
func NewCatalogService(source ports.MarketSource, markets ports.MarketRepository, publisher ports.EventPublisher) *CatalogService {
	return &CatalogService{source: source, markets: markets, publisher: publisher, now: time.Now}
}

// SyncState fetches, converts and stores all listings of a state and
// returns how many markets were written.
func (s *CatalogService) SyncState(ctx context.Context, state string) (int, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return 0, fmt.Errorf("state must not be empty")
	}

	ctx, span := tracer.Start(ctx, "CatalogService.SyncState")
	defer span.End()
	span.SetAttributes(attribute.String("state", state))

	raws, err := s.source.ByState(ctx, state)
	if err != nil {
		return 0, fmt.Errorf("fetch %s listings: %w", state, err)
	}
	markets := ConvertRawMarkets(raws, s.now())
	if len(markets) == 0 {
		slog.InfoContext(ctx, "no listings for state", "state", state)
		return 0, nil
	}

	if err := s.markets.UpsertBatch(ctx, markets); err != nil {
		return 0, fmt.Errorf("store %s markets: %w", state, err)
	}
	metrics.MarketsSynced.WithLabelValues(state).Add(float64(len(markets)))
	slog.InfoContext(ctx, "catalog synced", "state", state, "markets", len(markets))

	if s.publisher != nil {
		event := &domain.CatalogUpdated{
			ID:    uuid.NewString(),
			State: state,
			Count: len(markets),
			At:    s.now().UTC(),
		}
		if err := s.publisher.PublishCatalogUpdated(ctx, event); err != nil {
			// the catalog is already written
			slog.WarnContext(ctx, "publish catalog updated", "state", state, "error", err)
		}
	}
	return len(markets), nil
}

// SyncStates syncs each state in turn and stops at the first error.
func (s *CatalogService) SyncStates(ctx context.Context, states []string) (int, error) {
	total := 0
	for _, st := range states {
		n, err := s.SyncState(ctx, st)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// FetchNearby returns live directory listings around a point, nearest first,
// without storing them. radiusMiles is capped at MaxRadiusMiles.
func (s *CatalogService) FetchNearby(ctx context.Context, lat, lon, radiusMiles float64) ([]domain.Market, error) {
	if radiusMiles <= 0 || radiusMiles > MaxRadiusMiles {
		radiusMiles = MaxRadiusMiles
	}
	raws, err := s.source.ByCoordinates(ctx, lat, lon, radiusMiles)
	if err != nil {
		return nil, fmt.Errorf("fetch listings near %.4f,%.4f: %w", lat, lon, err)
	}

	markets := ConvertRawMarkets(raws, s.now())
	for i := range markets {
		d := geospatial.DistanceMiles(lat, lon, markets[i].Latitude, markets[i].Longitude)
		markets[i].Distance = &d
	}
	sort.SliceStable(markets, func(i, j int) bool { return *markets[i].Distance < *markets[j].Distance })
	return markets, nil
}
