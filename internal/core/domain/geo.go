package domain

import (
	"math"

	"github.com/paulmach/orb"
)

// Zoom range used by the estimator and by the clustering index.
const (
	MinZoom = 1
	MaxZoom = 20
)

// Coordinate is a WGS 84 position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeoPoint is a validated point feature for one market.
// Market is carried for presentation only; clustering never reads it.
type GeoPoint struct {
	ID     string  `json:"id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Market *Market `json:"market,omitempty"`
}

// Orb returns the point as an orb.Point ([lon, lat]).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// MapRegion is the visible map area as reported by the map host.
type MapRegion struct {
	CenterLat float64 `json:"lat"`
	CenterLon float64 `json:"lon"`
	LatSpan   float64 `json:"lat_span"`
	LonSpan   float64 `json:"lon_span"`
}

// Bounds returns the rectangle covered by the region. The all-zero region
// yields a zero-area box at the origin.
func (r MapRegion) Bounds() ViewportBounds {
	return ViewportBounds{
		Southwest: orb.Point{r.CenterLon - r.LonSpan/2, r.CenterLat - r.LatSpan/2},
		Northeast: orb.Point{r.CenterLon + r.LonSpan/2, r.CenterLat + r.LatSpan/2},
	}
}

// Validate reports whether the region can be used for a viewport query.
func (r MapRegion) Validate() error {
	for _, v := range []float64{r.CenterLat, r.CenterLon, r.LatSpan, r.LonSpan} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidRegion
		}
	}
	if math.Abs(r.CenterLat) > 90 || math.Abs(r.CenterLon) > 180 {
		return ErrInvalidRegion
	}
	if r.LatSpan < 0 || r.LonSpan < 0 || r.LatSpan > 180 || r.LonSpan > 360 {
		return ErrInvalidRegion
	}
	return nil
}

// ViewportBounds is an axis-aligned box in degrees. Southwest and Northeast
// are [lon, lat]. Wrapping across the antimeridian is not supported.
type ViewportBounds struct {
	Southwest orb.Point `json:"sw"`
	Northeast orb.Point `json:"ne"`
}

// Bound converts to an orb.Bound.
func (b ViewportBounds) Bound() orb.Bound {
	return orb.Bound{Min: b.Southwest, Max: b.Northeast}
}

// Contains reports whether (lon, lat) lies inside the box, edges included.
func (b ViewportBounds) Contains(lon, lat float64) bool {
	return b.Bound().Contains(orb.Point{lon, lat})
}

// EstimateZoom maps a longitude span to a zoom level:
// round(log2(360 / lonSpan)) clamped to [MinZoom, MaxZoom].
// A zero or negative span is treated as fully zoomed in.
func EstimateZoom(lonSpan float64) int {
	if math.IsNaN(lonSpan) {
		return MinZoom
	}
	if lonSpan <= 0 {
		return MaxZoom
	}
	z := math.Round(math.Log2(360 / lonSpan))
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return int(z)
}

// ZoomBand groups zoom levels for render budgeting.
type ZoomBand string

const (
	BandLow    ZoomBand = "low"
	BandMedium ZoomBand = "medium"
	BandHigh   ZoomBand = "high"
)

// BandForZoom returns low for zoom ≤ 10, medium for 11 to 14 and high for ≥ 15.
func BandForZoom(zoom int) ZoomBand {
	switch {
	case zoom <= 10:
		return BandLow
	case zoom <= 14:
		return BandMedium
	default:
		return BandHigh
	}
}
