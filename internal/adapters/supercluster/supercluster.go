// Package supercluster implements hierarchical greedy point clustering on a
// Web Mercator grid. Points are merged level by level from the deepest zoom
// upward, so every zoom has a pre-computed partition of the input and a
// viewport query is a single range search.
package supercluster

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/ports"
	"github.com/samirrijal/marketmap/internal/pkg/geospatial"
)

// Cluster ids pack the origin entry index and zoom; zoom takes 5 bits.
const (
	zoomBits   = 5
	maxMaxZoom = (1 << zoomBits) - 2
)

// Backend names a spatial tree implementation.
type Backend string

const (
	BackendKDTree Backend = "kdtree"
	BackendRTree  Backend = "rtree"
)

var (
	ErrInvalidOptions = errors.New("supercluster: invalid options")
	ErrInvalidPoint   = errors.New("supercluster: invalid point")
	ErrForeignIndex   = errors.New("supercluster: index was not built by this engine")
)

type spatialTree interface {
	Range(minX, minY, maxX, maxY float64) []int
	Within(x, y, r float64) []int
}

// entry is a point or cluster at one zoom level, in unit Mercator space.
type entry struct {
	x, y      float64
	zoom      float64 // last zoom the entry was visited at; +Inf when fresh
	id        int64   // original point index, or encoded cluster id
	parentID  int64
	numPoints int
	cluster   bool

	minLon, minLat, maxLon, maxLat float64
	samples                        []int
}

type level struct {
	entries []entry
	tree    spatialTree
}

// Engine builds indexes with a chosen backend. It is stateless and safe for
// concurrent use.
type Engine struct {
	backend Backend
}

var _ ports.SpatialIndex = (*Engine)(nil)

// New returns an engine for the named backend. An empty name selects the k-d tree.
func New(backend string) (*Engine, error) {
	switch Backend(backend) {
	case "", BackendKDTree:
		return &Engine{backend: BackendKDTree}, nil
	case BackendRTree:
		return &Engine{backend: BackendRTree}, nil
	default:
		return nil, fmt.Errorf("supercluster: unknown backend %q", backend)
	}
}

// Backend returns the backend in use.
func (e *Engine) Backend() Backend { return e.backend }

func (e *Engine) newTree(entries []entry, nodeSize int) spatialTree {
	if e.backend == BackendRTree {
		return newRTree(entries, nodeSize)
	}
	return newKDTree(entries, nodeSize)
}

// Index is a built cluster hierarchy. It is immutable and safe for
// concurrent queries.
type Index struct {
	points    []domain.GeoPoint
	levels    []*level // indexed by zoom, minZoom..maxZoom+1
	radius    float64
	extent    float64
	minZoom   int
	maxZoom   int
	minPoints int
}

var _ ports.Index = (*Index)(nil)

func validateProfile(p domain.PerformanceProfile) error {
	switch {
	case !(p.Radius > 0) || math.IsInf(p.Radius, 0):
		return fmt.Errorf("%w: radius must be positive", ErrInvalidOptions)
	case !(p.Extent > 0) || math.IsInf(p.Extent, 0):
		return fmt.Errorf("%w: extent must be positive", ErrInvalidOptions)
	case p.NodeSize < 1:
		return fmt.Errorf("%w: node size must be at least 1", ErrInvalidOptions)
	case p.MinZoom < 0:
		return fmt.Errorf("%w: min zoom must not be negative", ErrInvalidOptions)
	case p.MaxZoom < p.MinZoom:
		return fmt.Errorf("%w: max zoom %d below min zoom %d", ErrInvalidOptions, p.MaxZoom, p.MinZoom)
	case p.MaxZoom > maxMaxZoom:
		return fmt.Errorf("%w: max zoom must be at most %d", ErrInvalidOptions, maxMaxZoom)
	}
	return nil
}

// Build clusters points at every zoom from profile.MaxZoom down to
// profile.MinZoom. The input slice is copied.
func (e *Engine) Build(points []domain.GeoPoint, profile domain.PerformanceProfile) (ports.Index, error) {
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	minPoints := profile.MinPoints
	if minPoints < 2 {
		minPoints = 2
	}

	ix := &Index{
		points:    append([]domain.GeoPoint(nil), points...),
		levels:    make([]*level, profile.MaxZoom+2),
		radius:    profile.Radius,
		extent:    profile.Extent,
		minZoom:   profile.MinZoom,
		maxZoom:   profile.MaxZoom,
		minPoints: minPoints,
	}

	entries := make([]entry, len(points))
	for i, p := range points {
		if !validPoint(p) {
			return nil, fmt.Errorf("%w: %q at (%v, %v)", ErrInvalidPoint, p.ID, p.Lat, p.Lon)
		}
		entries[i] = entry{
			x:         geospatial.LngX(p.Lon),
			y:         geospatial.LatY(p.Lat),
			zoom:      math.Inf(1),
			id:        int64(i),
			parentID:  -1,
			numPoints: 1,
			minLon:    p.Lon,
			minLat:    p.Lat,
			maxLon:    p.Lon,
			maxLat:    p.Lat,
			samples:   []int{i},
		}
	}

	ix.levels[profile.MaxZoom+1] = &level{entries: entries, tree: e.newTree(entries, profile.NodeSize)}
	for z := profile.MaxZoom; z >= profile.MinZoom; z-- {
		next := ix.cluster(ix.levels[z+1], z)
		ix.levels[z] = &level{entries: next, tree: e.newTree(next, profile.NodeSize)}
	}
	return ix, nil
}

func validPoint(p domain.GeoPoint) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return math.Abs(p.Lat) <= 90 && math.Abs(p.Lon) <= 180
}

// cluster merges the entries of lvl (zoom z+1) into the entries for zoom z.
// Entries of lvl are marked with the zoom they were consumed at and the id
// of the cluster that absorbed them.
func (ix *Index) cluster(lvl *level, z int) []entry {
	r := geospatial.PixelRadius(ix.radius, ix.extent, z)
	zf := float64(z)
	data := lvl.entries
	next := make([]entry, 0, len(data))

	for i := range data {
		if data[i].zoom <= zf {
			continue
		}
		data[i].zoom = zf

		origin := data[i]
		neighbors := sortedIDs(lvl.tree.Within(origin.x, origin.y, r))

		numPoints := origin.numPoints
		for _, k := range neighbors {
			if data[k].zoom > zf {
				numPoints += data[k].numPoints
			}
		}

		if numPoints > origin.numPoints && numPoints >= ix.minPoints {
			id := int64(i)<<zoomBits + int64(z+1) + int64(len(ix.points))
			c := entry{
				x:         origin.x * float64(origin.numPoints),
				y:         origin.y * float64(origin.numPoints),
				zoom:      math.Inf(1),
				id:        id,
				parentID:  -1,
				numPoints: numPoints,
				cluster:   true,
				minLon:    origin.minLon,
				minLat:    origin.minLat,
				maxLon:    origin.maxLon,
				maxLat:    origin.maxLat,
				samples:   appendSamples(nil, origin.samples),
			}
			for _, k := range neighbors {
				if data[k].zoom <= zf {
					continue
				}
				data[k].zoom = zf
				n := &data[k]
				c.x += n.x * float64(n.numPoints)
				c.y += n.y * float64(n.numPoints)
				c.minLon = math.Min(c.minLon, n.minLon)
				c.minLat = math.Min(c.minLat, n.minLat)
				c.maxLon = math.Max(c.maxLon, n.maxLon)
				c.maxLat = math.Max(c.maxLat, n.maxLat)
				c.samples = appendSamples(c.samples, n.samples)
				n.parentID = id
			}
			data[i].parentID = id
			c.x /= float64(numPoints)
			c.y /= float64(numPoints)
			// The mean may round past the members' hull; a cluster whose
			// members all sit on a viewport edge must still be found there.
			c.x = clamp(c.x, geospatial.LngX(c.minLon), geospatial.LngX(c.maxLon))
			c.y = clamp(c.y, geospatial.LatY(c.maxLat), geospatial.LatY(c.minLat))
			next = append(next, c)
			continue
		}

		next = append(next, data[i])
		if numPoints > 1 {
			for _, k := range neighbors {
				if data[k].zoom <= zf {
					continue
				}
				data[k].zoom = zf
				next = append(next, data[k])
			}
		}
	}
	return next
}

func appendSamples(dst, src []int) []int {
	for _, s := range src {
		if len(dst) >= domain.SummarySampleSize {
			break
		}
		dst = append(dst, s)
	}
	return dst
}

func sortedIDs(ids []int) []int {
	sort.Ints(ids)
	return ids
}

// Len returns the number of input points.
func (ix *Index) Len() int { return len(ix.points) }

func (ix *Index) limitZoom(z int) int {
	if z > ix.maxZoom+1 {
		z = ix.maxZoom + 1
	}
	if z < ix.minZoom {
		z = ix.minZoom
	}
	return z
}

// Query returns the clusters and points of idx that fall inside bounds at zoom.
// Results are ordered by their position in the level, which does not depend
// on the backend.
func (e *Engine) Query(idx ports.Index, bounds domain.ViewportBounds, zoom int) ([]domain.ClusterResult, error) {
	ix, ok := idx.(*Index)
	if !ok || ix == nil {
		return nil, ErrForeignIndex
	}
	return ix.Clusters(bounds, zoom), nil
}

// Clusters returns the entries at zoom inside bounds. Longitudes are clamped
// to [-180, 180]; boxes crossing the antimeridian are not split.
func (ix *Index) Clusters(bounds domain.ViewportBounds, zoom int) []domain.ClusterResult {
	minLon := clamp(bounds.Southwest.Lon(), -180, 180)
	maxLon := clamp(bounds.Northeast.Lon(), -180, 180)
	minLat := clamp(bounds.Southwest.Lat(), -90, 90)
	maxLat := clamp(bounds.Northeast.Lat(), -90, 90)
	if minLon > maxLon || minLat > maxLat || len(ix.points) == 0 {
		return []domain.ClusterResult{}
	}

	lvl := ix.levels[ix.limitZoom(zoom)]
	ids := sortedIDs(lvl.tree.Range(
		geospatial.LngX(minLon), geospatial.LatY(maxLat),
		geospatial.LngX(maxLon), geospatial.LatY(minLat),
	))

	results := make([]domain.ClusterResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, ix.result(&lvl.entries[id]))
	}
	return results
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func (ix *Index) result(e *entry) domain.ClusterResult {
	if !e.cluster {
		return domain.Individual(ix.points[e.id])
	}
	expansion, err := ix.ExpansionZoom(e.id)
	if err != nil {
		expansion = ix.maxZoom + 1
	}
	return domain.ClusterResult{
		Kind: domain.KindCluster,
		Cluster: &domain.Cluster{
			ID:            e.id,
			Centroid:      domain.Coordinate{Lat: geospatial.YLat(e.y), Lon: geospatial.XLng(e.x)},
			Count:         e.numPoints,
			ExpansionZoom: expansion,
			Summary:       ix.summary(e),
		},
	}
}

func (ix *Index) summary(e *entry) domain.MemberSummary {
	ids := make([]string, len(e.samples))
	names := make([]string, len(e.samples))
	for i, s := range e.samples {
		ids[i] = ix.points[s].ID
		if m := ix.points[s].Market; m != nil {
			names[i] = m.Name
		}
	}
	return domain.MemberSummary{
		SampleIDs:   ids,
		SampleNames: names,
		Bounds: domain.ViewportBounds{
			Southwest: orb.Point{e.minLon, e.minLat},
			Northeast: orb.Point{e.maxLon, e.maxLat},
		},
	}
}

func (ix *Index) originIndex(clusterID int64) int64 {
	return (clusterID - int64(len(ix.points))) >> zoomBits
}

func (ix *Index) originZoom(clusterID int64) int {
	return int((clusterID - int64(len(ix.points))) % (1 << zoomBits))
}

// children returns the entries one zoom in that were merged into clusterID.
func (ix *Index) children(clusterID int64) ([]*entry, error) {
	if clusterID < int64(len(ix.points)) {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownCluster, clusterID)
	}
	oz := ix.originZoom(clusterID)
	oi := ix.originIndex(clusterID)
	if oz <= ix.minZoom || oz > ix.maxZoom+1 || ix.levels[oz] == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownCluster, clusterID)
	}
	lvl := ix.levels[oz]
	if oi < 0 || oi >= int64(len(lvl.entries)) {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownCluster, clusterID)
	}

	origin := lvl.entries[oi]
	r := geospatial.PixelRadius(ix.radius, ix.extent, oz-1)
	var out []*entry
	for _, id := range sortedIDs(lvl.tree.Within(origin.x, origin.y, r)) {
		if lvl.entries[id].parentID == clusterID {
			out = append(out, &lvl.entries[id])
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownCluster, clusterID)
	}
	return out, nil
}

// Children returns the direct children of a cluster.
func (ix *Index) Children(clusterID int64) ([]domain.ClusterResult, error) {
	entries, err := ix.children(clusterID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ClusterResult, len(entries))
	for i, e := range entries {
		out[i] = ix.result(e)
	}
	return out, nil
}

// Leaves returns the original points of a cluster in hierarchy order,
// skipping offset points. A non-positive limit returns all of them.
func (ix *Index) Leaves(clusterID int64, limit, offset int) ([]domain.GeoPoint, error) {
	if offset < 0 {
		offset = 0
	}
	leaves := []domain.GeoPoint{}
	if _, err := ix.appendLeaves(&leaves, clusterID, limit, offset, 0); err != nil {
		return nil, err
	}
	return leaves, nil
}

func (ix *Index) appendLeaves(out *[]domain.GeoPoint, clusterID int64, limit, offset, skipped int) (int, error) {
	children, err := ix.children(clusterID)
	if err != nil {
		return skipped, err
	}
	for _, c := range children {
		switch {
		case c.cluster && skipped+c.numPoints <= offset:
			skipped += c.numPoints
		case c.cluster:
			if skipped, err = ix.appendLeaves(out, c.id, limit, offset, skipped); err != nil {
				return skipped, err
			}
		case skipped < offset:
			skipped++
		default:
			*out = append(*out, ix.points[c.id])
		}
		if limit > 0 && len(*out) >= limit {
			break
		}
	}
	return skipped, nil
}

// ExpansionZoom returns the first zoom at which the cluster breaks into
// more than one child.
func (ix *Index) ExpansionZoom(clusterID int64) (int, error) {
	if clusterID < int64(len(ix.points)) {
		return 0, fmt.Errorf("%w: %d", domain.ErrUnknownCluster, clusterID)
	}
	zoom := ix.originZoom(clusterID) - 1
	for zoom <= ix.maxZoom {
		children, err := ix.children(clusterID)
		if err != nil {
			return 0, err
		}
		zoom++
		if len(children) != 1 || !children[0].cluster {
			break
		}
		clusterID = children[0].id
	}
	return zoom, nil
}
