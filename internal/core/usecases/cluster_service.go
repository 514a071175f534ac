package usecases

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/ports"
	"github.com/samirrijal/marketmap/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/marketmap/internal/core/usecases")

// DefaultIndexCacheSize is used when NewClusterService gets a non-positive size.
const DefaultIndexCacheSize = 128

// ClusterService runs the clustering pipeline. Built indexes are kept in an
// LRU keyed by a fingerprint of the point set and profile, so panning over
// the same markets only queries.
type ClusterService struct {
	index     ports.SpatialIndex
	backend   string
	indexes   *lru.Cache[uint64, ports.Index]
	builds    singleflight.Group
	publisher ports.EventPublisher
	logger    *slog.Logger
}

// NewClusterService creates a ClusterService. backend is used as a metric
// label only. publisher and logger may be nil.
func NewClusterService(index ports.SpatialIndex, backend string, cacheSize int, publisher ports.EventPublisher, logger *slog.Logger) (*ClusterService, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultIndexCacheSize
	}
	cache, err := lru.New[uint64, ports.Index](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("index cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClusterService{
		index:     index,
		backend:   backend,
		indexes:   cache,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// View computes the markers for region from markets.
func (s *ClusterService) View(ctx context.Context, markets []domain.Market, region domain.MapRegion, profile domain.PerformanceProfile) (*domain.ClusterView, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "ClusterService.View")
	defer span.End()
	start := time.Now()

	bounds := ComputeBounds(region)
	zoom := domain.EstimateZoom(region.LonSpan)
	band := domain.BandForZoom(zoom)
	culled := Cull(Normalize(ctx, markets), bounds)

	results := s.Cluster(ctx, culled, bounds, zoom, profile)

	results, fellBack := ApplyFallback(results, region.LonSpan, culled, profile.FallbackSpan)
	if fellBack {
		metrics.Fallbacks.WithLabelValues(profile.Name).Inc()
		s.logger.DebugContext(ctx, "cluster fallback applied", "lon_span", region.LonSpan, "points", len(culled))
	}

	results, truncated := Limit(results, band, profile)
	if truncated {
		metrics.Truncations.WithLabelValues(profile.Name, string(band)).Inc()
	}

	view := &domain.ClusterView{
		Platform:  profile.Name,
		Region:    region,
		Bounds:    bounds,
		Zoom:      zoom,
		Band:      band,
		Total:     len(culled),
		Results:   results,
		Markers:   Present(results),
		Fallback:  fellBack,
		Truncated: truncated,
	}

	metrics.ClusterDuration.WithLabelValues(profile.Name).Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("platform", profile.Name),
		attribute.Int("zoom", zoom),
		attribute.Int("points", len(culled)),
		attribute.Int("results", len(results)),
	)

	if s.publisher != nil {
		event := &domain.ClustersComputed{
			ID:        uuid.NewString(),
			Platform:  profile.Name,
			Region:    region,
			Zoom:      zoom,
			Results:   len(results),
			Fallback:  fellBack,
			Truncated: truncated,
			At:        time.Now().UTC(),
		}
		if err := s.publisher.PublishClustersComputed(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "publish clusters computed", "error", err)
		}
	}

	return view, nil
}

// Cluster groups points for bounds at zoom. It never fails: if the index
// cannot be built or queried, or panics, the points come back unclustered.
func (s *ClusterService) Cluster(ctx context.Context, points []domain.GeoPoint, bounds domain.ViewportBounds, zoom int, profile domain.PerformanceProfile) (results []domain.ClusterResult) {
	if len(points) == 0 {
		return []domain.ClusterResult{}
	}
	if profile.DisableClustering {
		return individuals(points)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "clustering panicked", "panic", r, "points", len(points))
			metrics.ClusterFailures.WithLabelValues("panic").Inc()
			results = individuals(points)
		}
	}()

	idx, err := s.indexFor(ctx, points, profile)
	if err != nil {
		s.logger.ErrorContext(ctx, "build cluster index", "error", err, "points", len(points))
		metrics.ClusterFailures.WithLabelValues("build").Inc()
		return individuals(points)
	}

	results, err = s.index.Query(idx, bounds, zoom)
	if err != nil {
		s.logger.ErrorContext(ctx, "query cluster index", "error", err, "zoom", zoom)
		metrics.ClusterFailures.WithLabelValues("query").Inc()
		return individuals(points)
	}
	return results
}

// Leaves returns the markets inside a cluster of the view for region.
func (s *ClusterService) Leaves(ctx context.Context, markets []domain.Market, region domain.MapRegion, profile domain.PerformanceProfile, clusterID int64, limit, offset int) ([]domain.GeoPoint, error) {
	idx, err := s.regionIndex(ctx, markets, region, profile)
	if err != nil {
		return nil, err
	}
	return idx.Leaves(clusterID, limit, offset)
}

// Children returns the results one zoom level inside a cluster of the view for region.
func (s *ClusterService) Children(ctx context.Context, markets []domain.Market, region domain.MapRegion, profile domain.PerformanceProfile, clusterID int64) ([]domain.ClusterResult, error) {
	idx, err := s.regionIndex(ctx, markets, region, profile)
	if err != nil {
		return nil, err
	}
	return idx.Children(clusterID)
}

func (s *ClusterService) regionIndex(ctx context.Context, markets []domain.Market, region domain.MapRegion, profile domain.PerformanceProfile) (ports.Index, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	culled := Cull(Normalize(ctx, markets), ComputeBounds(region))
	if len(culled) == 0 || profile.DisableClustering {
		return nil, domain.ErrUnknownCluster
	}
	return s.indexFor(ctx, culled, profile)
}

func (s *ClusterService) indexFor(ctx context.Context, points []domain.GeoPoint, profile domain.PerformanceProfile) (ports.Index, error) {
	key := fingerprint(points, profile)
	if idx, ok := s.indexes.Get(key); ok {
		metrics.CacheHits.WithLabelValues("cluster_index").Inc()
		return idx, nil
	}
	metrics.CacheMisses.WithLabelValues("cluster_index").Inc()

	v, err, _ := s.builds.Do(strconv.FormatUint(key, 16), func() (interface{}, error) {
		_, span := tracer.Start(ctx, "ClusterService.BuildIndex")
		defer span.End()

		start := time.Now()
		idx, err := s.index.Build(points, profile)
		metrics.IndexBuilds.WithLabelValues(s.backend).Inc()
		metrics.IndexBuildDuration.WithLabelValues(s.backend).Observe(time.Since(start).Seconds())
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		s.indexes.Add(key, idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ports.Index), nil
}

// fingerprint hashes everything the index depends on.
func fingerprint(points []domain.GeoPoint, p domain.PerformanceProfile) uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 64)

	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.Radius))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.Extent))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.NodeSize))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.MinPoints))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.MinZoom))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.MaxZoom))
	_, _ = d.Write(buf)

	for _, pt := range points {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(pt.Lat))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(pt.Lon))
		if pt.Market != nil {
			// payload is served from the cached index
			buf = binary.LittleEndian.AppendUint64(buf, uint64(pt.Market.UpdatedAt.UnixNano()))
			if pt.Market.IsFavorite {
				buf = append(buf, 1)
			}
		}
		_, _ = d.Write(buf)
		_, _ = d.WriteString(pt.ID)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}
