package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/usecases"
)

func viewFor(region domain.MapRegion) *domain.ClusterView {
	return &domain.ClusterView{Region: region}
}

func TestRegionScheduler_CoalescesBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var computed []float64
	delivered := make(chan *domain.ClusterView, 4)

	s := usecases.NewRegionScheduler(30*time.Millisecond,
		func(ctx context.Context, r domain.MapRegion) (*domain.ClusterView, error) {
			mu.Lock()
			computed = append(computed, r.CenterLat)
			mu.Unlock()
			return viewFor(r), nil
		},
		func(v *domain.ClusterView, err error) { delivered <- v },
	)
	go s.Run(ctx)

	for i := 1; i <= 5; i++ {
		s.Submit(domain.MapRegion{CenterLat: float64(i), LatSpan: 1, LonSpan: 1})
	}

	select {
	case v := <-delivered:
		if v.Region.CenterLat != 5 {
			t.Errorf("expected the latest region, got %v", v.Region.CenterLat)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	select {
	case v := <-delivered:
		t.Errorf("unexpected extra delivery for %v", v.Region.CenterLat)
	case <-time.After(100 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	if len(computed) != 1 {
		t.Errorf("expected 1 computation, got %v", computed)
	}
}

func TestRegionScheduler_DropsSupersededResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	delivered := make(chan *domain.ClusterView, 4)

	s := usecases.NewRegionScheduler(10*time.Millisecond,
		func(ctx context.Context, r domain.MapRegion) (*domain.ClusterView, error) {
			if r.CenterLat == 1 {
				close(started)
				<-release
			}
			return viewFor(r), nil
		},
		func(v *domain.ClusterView, err error) { delivered <- v },
	)
	go s.Run(ctx)

	s.Submit(domain.MapRegion{CenterLat: 1, LatSpan: 1, LonSpan: 1})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first computation")
	}

	s.Submit(domain.MapRegion{CenterLat: 2, LatSpan: 1, LonSpan: 1})
	close(release)

	select {
	case v := <-delivered:
		if v.Region.CenterLat != 2 {
			t.Errorf("superseded result delivered: %v", v.Region.CenterLat)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestRegionScheduler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := usecases.NewRegionScheduler(time.Hour,
		func(ctx context.Context, r domain.MapRegion) (*domain.ClusterView, error) { return nil, nil },
		func(v *domain.ClusterView, err error) { t.Error("nothing should be delivered") },
	)
	go s.Run(ctx)
	s.Submit(domain.MapRegion{})
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRegionScheduler_SetDebounce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delivered := make(chan *domain.ClusterView, 1)
	s := usecases.NewRegionScheduler(time.Hour,
		func(ctx context.Context, r domain.MapRegion) (*domain.ClusterView, error) {
			return viewFor(r), nil
		},
		func(v *domain.ClusterView, err error) { delivered <- v },
	)
	go s.Run(ctx)

	// a platform switch lowers the quiet period before the next region
	s.SetDebounce(10 * time.Millisecond)
	s.Submit(domain.MapRegion{CenterLat: 7, LatSpan: 1, LonSpan: 1})

	select {
	case v := <-delivered:
		if v.Region.CenterLat != 7 {
			t.Errorf("unexpected region %v", v.Region.CenterLat)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("new debounce was not applied")
	}
}
