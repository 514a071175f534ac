package usecases_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/ports"
)

// --- Mock MarketRepository ---

type mockMarketRepo struct {
	upsertBatchFn  func(ctx context.Context, markets []domain.Market) error
	getByIDFn      func(ctx context.Context, id string) (*domain.Market, error)
	listByStatesFn func(ctx context.Context, states []string) ([]domain.Market, error)
	findNearbyFn   func(ctx context.Context, lat, lon, radiusMiles float64, limit int) ([]domain.Market, error)
}

func (m *mockMarketRepo) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, markets)
	}
	return nil
}

func (m *mockMarketRepo) GetByID(ctx context.Context, id string) (*domain.Market, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockMarketRepo) List(ctx context.Context, state string, offset, limit int) ([]domain.Market, int, error) {
	return nil, 0, nil
}

func (m *mockMarketRepo) ListByStates(ctx context.Context, states []string) ([]domain.Market, error) {
	if m.listByStatesFn != nil {
		return m.listByStatesFn(ctx, states)
	}
	return nil, nil
}

func (m *mockMarketRepo) FindNearby(ctx context.Context, lat, lon, radiusMiles float64, limit int) ([]domain.Market, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radiusMiles, limit)
	}
	return nil, nil
}

func (m *mockMarketRepo) InBounds(ctx context.Context, bounds domain.ViewportBounds, limit int) ([]domain.Market, error) {
	return nil, nil
}

// --- Mock MarketSource ---

type mockSource struct {
	byStateFn  func(ctx context.Context, state string) ([]domain.RawMarket, error)
	byCoordsFn func(ctx context.Context, lat, lon, radiusMiles float64) ([]domain.RawMarket, error)
}

func (m *mockSource) ByState(ctx context.Context, state string) ([]domain.RawMarket, error) {
	if m.byStateFn != nil {
		return m.byStateFn(ctx, state)
	}
	return nil, nil
}

func (m *mockSource) ByCoordinates(ctx context.Context, lat, lon, radiusMiles float64) ([]domain.RawMarket, error) {
	if m.byCoordsFn != nil {
		return m.byCoordsFn(ctx, lat, lon, radiusMiles)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu       sync.Mutex
	catalog  []*domain.CatalogUpdated
	computed []*domain.ClustersComputed
}

func (p *mockPublisher) PublishCatalogUpdated(ctx context.Context, e *domain.CatalogUpdated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.catalog = append(p.catalog, e)
	return nil
}

func (p *mockPublisher) PublishClustersComputed(ctx context.Context, e *domain.ClustersComputed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.computed = append(p.computed, e)
	return nil
}

// --- Mock SpatialIndex ---

type mockIndex struct{ n int }

func (i mockIndex) Len() int { return i.n }
func (i mockIndex) Children(int64) ([]domain.ClusterResult, error) {
	return nil, domain.ErrUnknownCluster
}
func (i mockIndex) Leaves(int64, int, int) ([]domain.GeoPoint, error) {
	return nil, domain.ErrUnknownCluster
}
func (i mockIndex) ExpansionZoom(int64) (int, error) { return 0, domain.ErrUnknownCluster }

type mockSpatialIndex struct {
	builds  atomic.Int32
	buildFn func(points []domain.GeoPoint, profile domain.PerformanceProfile) (ports.Index, error)
	queryFn func(idx ports.Index, bounds domain.ViewportBounds, zoom int) ([]domain.ClusterResult, error)
}

func (m *mockSpatialIndex) Build(points []domain.GeoPoint, profile domain.PerformanceProfile) (ports.Index, error) {
	m.builds.Add(1)
	if m.buildFn != nil {
		return m.buildFn(points, profile)
	}
	return mockIndex{n: len(points)}, nil
}

func (m *mockSpatialIndex) Query(idx ports.Index, bounds domain.ViewportBounds, zoom int) ([]domain.ClusterResult, error) {
	if m.queryFn != nil {
		return m.queryFn(idx, bounds, zoom)
	}
	return nil, nil
}
