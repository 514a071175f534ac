package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/ports"
	"github.com/samirrijal/marketmap/internal/pkg/geospatial"
	"github.com/samirrijal/marketmap/internal/pkg/metrics"
)

const (
	// Regions narrower than this (degrees, both spans) are loaded by radius.
	nearbySpanLimit = 2.0
	milesPerDegree  = 69.0
	// MaxRadiusMiles caps radius searches.
	MaxRadiusMiles = 100.0

	regionLoadLimit = 2000

	// generationKey holds the catalog generation every cached load is keyed
	// under. It outlives all load TTLs.
	generationKey = "markets:generation"
	generationTTL = 7 * 24 * 3600
)

// MarketService handles market catalog reads.
type MarketService struct {
	markets ports.MarketRepository
	cache   ports.CacheService
}

// NewMarketService creates a new MarketService.
func NewMarketService(markets ports.MarketRepository, cache ports.CacheService) *MarketService {
	return &MarketService{markets: markets, cache: cache}
}

// GetByID returns a single market.
func (s *MarketService) GetByID(ctx context.Context, id string) (*domain.Market, error) {
	cacheKey := s.catalogKey(ctx, "id:"+id)
	var cached domain.Market
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheKey, m, 600)
	return m, nil
}

// List returns a page of markets and the total count.
func (s *MarketService) List(ctx context.Context, state string, offset, limit int) ([]domain.Market, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.markets.List(ctx, strings.ToUpper(state), offset, limit)
}

// FindNearby returns markets within radiusMiles, nearest first.
func (s *MarketService) FindNearby(ctx context.Context, lat, lon, radiusMiles float64, limit int) ([]domain.Market, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if radiusMiles <= 0 || radiusMiles > MaxRadiusMiles {
		radiusMiles = MaxRadiusMiles
	}

	cacheKey := s.catalogKey(ctx, fmt.Sprintf("nearby:%.4f:%.4f:%.1f:%d", lat, lon, radiusMiles, limit))
	var cached []domain.Market
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	markets, err := s.markets.FindNearby(ctx, lat, lon, radiusMiles, limit)
	if err != nil {
		return nil, fmt.Errorf("find nearby markets: %w", err)
	}
	s.cacheSet(ctx, cacheKey, markets, 300)
	return markets, nil
}

// InRegion loads the markets a map region may show. Close-up regions are
// loaded by radius around the center; wide regions by the states they
// overlap.
func (s *MarketService) InRegion(ctx context.Context, region domain.MapRegion) ([]domain.Market, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}

	if region.LatSpan < nearbySpanLimit && region.LonSpan < nearbySpanLimit {
		radius := math.Min(math.Max(region.LatSpan, region.LonSpan)*milesPerDegree, MaxRadiusMiles)
		span := math.Max(region.LatSpan, region.LonSpan)
		cacheKey := s.catalogKey(ctx, fmt.Sprintf("region:%s:%.4f",
			geospatial.CellToken(region.CenterLat, region.CenterLon, cellLevelForSpan(span)), span))

		var cached []domain.Market
		if s.cacheGet(ctx, cacheKey, &cached) {
			return cached, nil
		}
		markets, err := s.markets.FindNearby(ctx, region.CenterLat, region.CenterLon, radius, regionLoadLimit)
		if err != nil {
			return nil, fmt.Errorf("load region by radius: %w", err)
		}
		s.cacheSet(ctx, cacheKey, markets, 120)
		return markets, nil
	}

	states := StatesInRegion(region)
	if len(states) == 0 {
		return []domain.Market{}, nil
	}
	cacheKey := s.catalogKey(ctx, "states:"+strings.Join(states, ","))
	var cached []domain.Market
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}
	markets, err := s.markets.ListByStates(ctx, states)
	if err != nil {
		return nil, fmt.Errorf("load region by states: %w", err)
	}
	s.cacheSet(ctx, cacheKey, markets, 300)
	return markets, nil
}

// StatesInRegion returns the states whose boxes overlap region, sorted.
func StatesInRegion(region domain.MapRegion) []string {
	b := region.Bounds()
	minLon, minLat := b.Southwest.Lon(), b.Southwest.Lat()
	maxLon, maxLat := b.Northeast.Lon(), b.Northeast.Lat()

	var states []string
	for state, box := range domain.StateBoxes {
		if box.MaxLat >= minLat && box.MinLat <= maxLat && box.MaxLon >= minLon && box.MinLon <= maxLon {
			states = append(states, state)
		}
	}
	sort.Strings(states)
	return states
}

// cellLevelForSpan picks an S2 level whose cells are about a sixteenth of span.
func cellLevelForSpan(span float64) int {
	if span <= 0 {
		return 30
	}
	return int(math.Ceil(math.Log2(1440 / span)))
}

func (s *MarketService) cacheGet(ctx context.Context, key string, v any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("markets").Inc()
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	metrics.CacheHits.WithLabelValues("markets").Inc()
	return true
}

func (s *MarketService) cacheSet(ctx context.Context, key string, v any, ttlSeconds int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttlSeconds)
	}
}

// catalogKey prefixes suffix with the current catalog generation.
func (s *MarketService) catalogKey(ctx context.Context, suffix string) string {
	gen := "0"
	if s.cache != nil {
		if b, err := s.cache.Get(ctx, generationKey); err == nil && len(b) > 0 {
			gen = string(b)
		}
	}
	return "markets:" + gen + ":" + suffix
}

// InvalidateState drops cached loads after state was re-synced. Radius and
// multi-state loads may hold any state's markets, so the whole catalog
// generation moves on and earlier keys expire unread.
func (s *MarketService) InvalidateState(ctx context.Context, state string) {
	if s.cache == nil {
		return
	}
	gen := strconv.FormatInt(time.Now().UnixNano(), 36)
	_ = s.cache.Set(ctx, generationKey, []byte(gen), generationTTL)
}
