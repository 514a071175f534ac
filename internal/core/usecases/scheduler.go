package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

// RegionFunc computes a result for a region.
type RegionFunc func(ctx context.Context, region domain.MapRegion) (*domain.ClusterView, error)

// DeliverFunc receives computed results. It is called from the scheduler's
// worker goroutine, one call at a time.
type DeliverFunc func(view *domain.ClusterView, err error)

// RegionScheduler coalesces bursts of region changes. Only the most recent
// region is computed once it has been quiet for the debounce interval, and a
// result is delivered only if no newer region arrived while it was computed.
type RegionScheduler struct {
	compute RegionFunc
	deliver DeliverFunc

	mu       sync.Mutex
	debounce time.Duration
	pending  *domain.MapRegion
	seq      uint64

	notify chan struct{}
	done   chan struct{}
}

// NewRegionScheduler creates a scheduler. Call Run to start it.
func NewRegionScheduler(debounce time.Duration, compute RegionFunc, deliver DeliverFunc) *RegionScheduler {
	return &RegionScheduler{
		debounce: debounce,
		compute:  compute,
		deliver:  deliver,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Submit replaces any pending region with region. It never blocks.
func (s *RegionScheduler) Submit(region domain.MapRegion) {
	s.mu.Lock()
	s.pending = &region
	s.seq++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// SetDebounce changes the quiet period. It applies from the next wait on.
func (s *RegionScheduler) SetDebounce(d time.Duration) {
	s.mu.Lock()
	s.debounce = d
	s.mu.Unlock()
}

func (s *RegionScheduler) quietPeriod() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounce
}

// Done is closed when Run returns.
func (s *RegionScheduler) Done() <-chan struct{} { return s.done }

// Run processes regions until ctx is cancelled.
func (s *RegionScheduler) Run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		}

		// wait for a quiet period; every new submit restarts it
		for quiet := false; !quiet; {
			timer := time.NewTimer(s.quietPeriod())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.notify:
				timer.Stop()
			case <-timer.C:
				quiet = true
			}
		}

		s.mu.Lock()
		region, seq := s.pending, s.seq
		s.pending = nil
		s.mu.Unlock()
		if region == nil {
			continue
		}

		view, err := s.compute(ctx, *region)
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		stale := s.seq != seq
		s.mu.Unlock()
		if stale {
			continue
		}
		s.deliver(view, err)
	}
}
