package domain

// ResultKind tags a ClusterResult.
type ResultKind string

const (
	KindCluster    ResultKind = "cluster"
	KindIndividual ResultKind = "individual"
)

// ClusterResult is either an aggregate of nearby points or a single point.
// Exactly one of Cluster and Point is set, matching Kind.
type ClusterResult struct {
	Kind    ResultKind `json:"kind"`
	Cluster *Cluster   `json:"cluster,omitempty"`
	Point   *GeoPoint  `json:"point,omitempty"`
}

// Individual wraps a point as a result.
func Individual(p GeoPoint) ClusterResult {
	return ClusterResult{Kind: KindIndividual, Point: &p}
}

// IsCluster reports whether r is an aggregate.
func (r ClusterResult) IsCluster() bool {
	return r.Kind == KindCluster
}

// Count returns the number of points the result stands for.
func (r ClusterResult) Count() int {
	if r.Kind == KindCluster && r.Cluster != nil {
		return r.Cluster.Count
	}
	return 1
}

// Position returns where the result should be drawn.
func (r ClusterResult) Position() Coordinate {
	if r.Kind == KindCluster && r.Cluster != nil {
		return r.Cluster.Centroid
	}
	if r.Point != nil {
		return Coordinate{Lat: r.Point.Lat, Lon: r.Point.Lon}
	}
	return Coordinate{}
}

// Cluster is an aggregate of two or more points.
type Cluster struct {
	ID            int64         `json:"id"`
	Centroid      Coordinate    `json:"centroid"`
	Count         int           `json:"count"`
	ExpansionZoom int           `json:"expansion_zoom"`
	Summary       MemberSummary `json:"summary"`
}

// MemberSummary describes a cluster's members without listing all of them.
// SampleNames runs parallel to SampleIDs; a member without a market payload
// has an empty name.
type MemberSummary struct {
	SampleIDs   []string       `json:"sample_ids"`
	SampleNames []string       `json:"sample_names"`
	Bounds      ViewportBounds `json:"bounds"`
}

// SummarySampleSize caps the members listed in a MemberSummary.
const SummarySampleSize = 5

// MarkerKind tags a Marker.
type MarkerKind string

const (
	MarkerCluster MarkerKind = "cluster"
	MarkerPoint   MarkerKind = "point"
)

// Marker event types.
const (
	EventClusterTapped = "cluster_tapped"
	EventMarkerTapped  = "marker_tapped"
)

// Marker is a renderable descriptor handed to the map host.
type Marker struct {
	Key        string      `json:"key"`
	Kind       MarkerKind  `json:"kind"`
	Coordinate Coordinate  `json:"coordinate"`
	Count      int         `json:"count"`
	Badge      string      `json:"badge,omitempty"`
	Icon       string      `json:"icon"`
	Event      MarkerEvent `json:"event"`
}

// MarkerEvent is emitted by the host when a marker is tapped.
type MarkerEvent struct {
	Type          string         `json:"type"`
	Centroid      *Coordinate    `json:"centroid,omitempty"`
	Summary       *MemberSummary `json:"summary,omitempty"`
	ClusterID     int64          `json:"cluster_id,omitempty"`
	ExpansionZoom int            `json:"expansion_zoom,omitempty"`
	Market        *Market        `json:"market,omitempty"`
}

// ClusterView is everything a map host needs to redraw one region.
type ClusterView struct {
	Platform  string          `json:"platform"`
	Region    MapRegion       `json:"region"`
	Bounds    ViewportBounds  `json:"bounds"`
	Zoom      int             `json:"zoom"`
	Band      ZoomBand        `json:"band"`
	Total     int             `json:"total"` // points inside the bounds
	Results   []ClusterResult `json:"-"`
	Markers   []Marker        `json:"markers"`
	Fallback  bool            `json:"fallback"`
	Truncated bool            `json:"truncated"`
}
