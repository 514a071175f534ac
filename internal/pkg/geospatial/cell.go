package geospatial

import "github.com/golang/geo/s2"

// CellToken returns the token of the S2 cell at the given level containing
// (lat, lon). Nearby coordinates share a token, which makes it usable as a
// coarse cache key.
func CellToken(lat, lon float64, level int) string {
	if level < 0 {
		level = 0
	}
	if level > 30 {
		level = 30
	}
	ll := s2.LatLngFromDegrees(lat, lon)
	return s2.CellIDFromLatLng(ll).Parent(level).ToToken()
}
