package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"github.com/samirrijal/marketmap/internal/adapters/supercluster"
	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/ports"
	"github.com/samirrijal/marketmap/internal/core/usecases"
)

const centerLat, centerLon = 40.7359, -73.9903

// crossMarkets are five markets within about 30 m of each other.
func crossMarkets() []domain.Market {
	const d = 0.0002
	return []domain.Market{
		{ID: "c", Name: "Union Square", Latitude: centerLat, Longitude: centerLon},
		{ID: "n", Name: "North", Latitude: centerLat + d, Longitude: centerLon},
		{ID: "s", Name: "South", Latitude: centerLat - d, Longitude: centerLon},
		{ID: "e", Name: "East", Latitude: centerLat, Longitude: centerLon + d},
		{ID: "w", Name: "West", Latitude: centerLat, Longitude: centerLon - d},
	}
}

func newService(t *testing.T, index ports.SpatialIndex, pub ports.EventPublisher) *usecases.ClusterService {
	t.Helper()
	svc, err := usecases.NewClusterService(index, "test", 8, pub, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func realEngine(t *testing.T) ports.SpatialIndex {
	t.Helper()
	e, err := supercluster.New("kdtree")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func TestClusterService_ViewZoomedOut(t *testing.T) {
	svc := newService(t, realEngine(t), nil)
	region := domain.MapRegion{CenterLat: centerLat, CenterLon: centerLon, LatSpan: 20, LonSpan: 45}

	view, err := svc.View(context.Background(), crossMarkets(), region, domain.DefaultProfile("ios"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Zoom != 3 {
		t.Errorf("expected zoom 3, got %d", view.Zoom)
	}
	if len(view.Markers) != 1 {
		t.Fatalf("expected 1 marker, got %d", len(view.Markers))
	}
	m := view.Markers[0]
	if m.Kind != domain.MarkerCluster || m.Count != 5 {
		t.Errorf("expected one cluster of 5, got %+v", m)
	}
	if view.Total != 5 || view.Fallback || view.Truncated {
		t.Errorf("unexpected view flags: %+v", view)
	}
}

func TestClusterService_ViewZoomedIn(t *testing.T) {
	svc := newService(t, realEngine(t), nil)
	region := domain.MapRegion{CenterLat: centerLat, CenterLon: centerLon, LatSpan: 0.002, LonSpan: 0.0014}

	view, err := svc.View(context.Background(), crossMarkets(), region, domain.DefaultProfile("ios"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Zoom != 18 {
		t.Errorf("expected zoom 18, got %d", view.Zoom)
	}
	if len(view.Markers) != 5 {
		t.Fatalf("expected 5 markers, got %d", len(view.Markers))
	}
	for _, m := range view.Markers {
		if m.Kind != domain.MarkerPoint {
			t.Errorf("expected point marker, got %+v", m)
		}
	}
	if view.Fallback {
		t.Error("fallback must not fire when individuals are present")
	}
}

func TestClusterService_ViewInvalidRegion(t *testing.T) {
	svc := newService(t, realEngine(t), nil)
	_, err := svc.View(context.Background(), crossMarkets(), domain.MapRegion{CenterLat: 95, LatSpan: 1, LonSpan: 1}, domain.DefaultProfile("ios"))
	if !errors.Is(err, domain.ErrInvalidRegion) {
		t.Fatalf("expected ErrInvalidRegion, got %v", err)
	}
}

func TestClusterService_ViewAppliesFallback(t *testing.T) {
	index := &mockSpatialIndex{
		queryFn: func(idx ports.Index, bounds domain.ViewportBounds, zoom int) ([]domain.ClusterResult, error) {
			return []domain.ClusterResult{clusterOf(5)}, nil
		},
	}
	pub := &mockPublisher{}
	svc := newService(t, index, pub)
	region := domain.MapRegion{CenterLat: centerLat, CenterLon: centerLon, LatSpan: 0.005, LonSpan: 0.005}

	view, err := svc.View(context.Background(), crossMarkets(), region, domain.DefaultProfile("ios"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.Fallback {
		t.Fatal("expected fallback")
	}
	if len(view.Markers) != 5 {
		t.Errorf("expected 5 individual markers, got %d", len(view.Markers))
	}
	if len(pub.computed) != 1 || !pub.computed[0].Fallback {
		t.Errorf("expected one clusters-computed event with fallback, got %+v", pub.computed)
	}
}

func TestClusterService_ViewTruncates(t *testing.T) {
	profile := domain.DefaultProfile("android")
	profile.DisableClustering = true
	profile.Budgets = domain.RenderBudget{Low: 2, Medium: 2, High: 2}
	svc := newService(t, realEngine(t), nil)
	region := domain.MapRegion{CenterLat: centerLat, CenterLon: centerLon, LatSpan: 1, LonSpan: 1}

	view, err := svc.View(context.Background(), crossMarkets(), region, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.Truncated || len(view.Markers) != 2 {
		t.Errorf("expected 2 markers truncated, got %d (%v)", len(view.Markers), view.Truncated)
	}
	if view.Markers[0].Key != "market-c" {
		t.Errorf("expected upstream order kept, got %s", view.Markers[0].Key)
	}
}

func geoPoints() []domain.GeoPoint {
	return usecases.Normalize(context.Background(), crossMarkets())
}

var everywhere = domain.ViewportBounds{Southwest: orb.Point{-180, -90}, Northeast: orb.Point{180, 90}}

func TestClusterService_BuildErrorFallsBack(t *testing.T) {
	index := &mockSpatialIndex{
		buildFn: func(points []domain.GeoPoint, profile domain.PerformanceProfile) (ports.Index, error) {
			return nil, errors.New("boom")
		},
	}
	svc := newService(t, index, nil)

	got := svc.Cluster(context.Background(), geoPoints(), everywhere, 10, domain.DefaultProfile("web"))
	if len(got) != 5 {
		t.Fatalf("expected 5 results, got %d", len(got))
	}
	for _, r := range got {
		if r.Kind != domain.KindIndividual {
			t.Errorf("expected individual, got %s", r.Kind)
		}
	}
}

func TestClusterService_PanicFallsBack(t *testing.T) {
	index := &mockSpatialIndex{
		queryFn: func(idx ports.Index, bounds domain.ViewportBounds, zoom int) ([]domain.ClusterResult, error) {
			panic("index corrupted")
		},
	}
	svc := newService(t, index, nil)

	got := svc.Cluster(context.Background(), geoPoints(), everywhere, 10, domain.DefaultProfile("web"))
	if len(got) != 5 {
		t.Fatalf("expected 5 individual results, got %d", len(got))
	}
}

func TestClusterService_ReusesIndex(t *testing.T) {
	index := &mockSpatialIndex{}
	svc := newService(t, index, nil)
	points := geoPoints()

	for i := 0; i < 3; i++ {
		svc.Cluster(context.Background(), points, everywhere, 5+i, domain.DefaultProfile("web"))
	}
	if n := index.builds.Load(); n != 1 {
		t.Errorf("expected 1 build, got %d", n)
	}

	svc.Cluster(context.Background(), points[:3], everywhere, 5, domain.DefaultProfile("web"))
	if n := index.builds.Load(); n != 2 {
		t.Errorf("expected a rebuild for a new point set, got %d builds", n)
	}

	other := domain.DefaultProfile("web")
	other.Radius = 60
	svc.Cluster(context.Background(), points, everywhere, 5, other)
	if n := index.builds.Load(); n != 3 {
		t.Errorf("expected a rebuild for a new profile, got %d builds", n)
	}
}

func TestClusterService_ConcurrentCallsAgree(t *testing.T) {
	svc := newService(t, realEngine(t), nil)
	points := geoPoints()

	var wg sync.WaitGroup
	counts := make([]int, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := svc.Cluster(context.Background(), points, everywhere, 3, domain.DefaultProfile("web"))
			for _, r := range res {
				counts[i] += r.Count()
			}
		}(i)
	}
	wg.Wait()
	for i, c := range counts {
		if c != 5 {
			t.Errorf("call %d: expected 5 points, got %d", i, c)
		}
	}
}

func TestClusterService_DisabledAndEmpty(t *testing.T) {
	index := &mockSpatialIndex{}
	svc := newService(t, index, nil)

	profile := domain.DefaultProfile("web")
	profile.DisableClustering = true
	got := svc.Cluster(context.Background(), geoPoints(), everywhere, 3, profile)
	if len(got) != 5 {
		t.Errorf("expected 5 individuals, got %d", len(got))
	}

	empty := svc.Cluster(context.Background(), nil, everywhere, 3, domain.DefaultProfile("web"))
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil result, got %v", empty)
	}
	if n := index.builds.Load(); n != 0 {
		t.Errorf("expected no builds, got %d", n)
	}
}

func TestClusterService_Leaves(t *testing.T) {
	svc := newService(t, realEngine(t), nil)
	region := domain.MapRegion{CenterLat: centerLat, CenterLon: centerLon, LatSpan: 20, LonSpan: 45}
	profile := domain.DefaultProfile("ios")

	view, err := svc.View(context.Background(), crossMarkets(), region, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := view.Markers[0].Event.ClusterID

	leaves, err := svc.Leaves(context.Background(), crossMarkets(), region, profile, id, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leaves) != 5 {
		t.Errorf("expected 5 leaves, got %d", len(leaves))
	}

	_, err = svc.Leaves(context.Background(), crossMarkets(), region, profile, 1, 0, 0)
	if !errors.Is(err, domain.ErrUnknownCluster) {
		t.Errorf("expected ErrUnknownCluster, got %v", err)
	}
}

func TestClusterService_ViewKeepsMarketsOnTheViewportEdge(t *testing.T) {
	svc := newService(t, realEngine(t), nil)
	region := domain.MapRegion{CenterLat: 41.8781, CenterLon: -87.6298, LatSpan: 0.4, LonSpan: 0.5}
	west := region.CenterLon - region.LonSpan/2

	var markets []domain.Market
	for i := 0; i < 4; i++ {
		markets = append(markets, domain.Market{
			ID:        "edge" + string(rune('a'+i)),
			Latitude:  region.CenterLat + float64(i)*0.0001,
			Longitude: west,
		})
	}

	view, err := svc.View(context.Background(), markets, region, domain.DefaultProfile("web"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Total != len(markets) {
		t.Fatalf("expected %d culled markets, got %d", len(markets), view.Total)
	}
	total := 0
	for _, r := range view.Results {
		total += r.Count()
	}
	if total != view.Total {
		t.Errorf("results cover %d of %d markets in view", total, view.Total)
	}
	if view.Fallback {
		t.Error("fallback must not be needed at this span")
	}
}
