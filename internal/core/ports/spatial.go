package ports

import "github.com/samirrijal/marketmap/internal/core/domain"

// SpatialIndex builds and queries a hierarchical clustering index.
// Build is the expensive step; Query is expected to be cheap and may be
// called many times against one Index.
type SpatialIndex interface {
	Build(points []domain.GeoPoint, profile domain.PerformanceProfile) (Index, error)
	Query(index Index, bounds domain.ViewportBounds, zoom int) ([]domain.ClusterResult, error)
}

// Index is an immutable, built clustering index.
type Index interface {
	// Len returns the number of points the index was built from.
	Len() int
	// Children returns the direct children of a cluster one zoom level in.
	Children(clusterID int64) ([]domain.ClusterResult, error)
	// Leaves returns the points of a cluster, paged by limit and offset.
	Leaves(clusterID int64, limit, offset int) ([]domain.GeoPoint, error)
	// ExpansionZoom returns the zoom at which the cluster splits apart.
	ExpansionZoom(clusterID int64) (int, error)
}
