package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const metersPerMile = 1609.344

// DistanceMiles returns the great-circle distance between two WGS84 points
// in statute miles.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	return MetersToMiles(geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2}))
}

// MilesToMeters converts statute miles to meters.
func MilesToMeters(miles float64) float64 { return miles * metersPerMile }

// MetersToMiles converts meters to statute miles.
func MetersToMiles(meters float64) float64 { return meters / metersPerMile }
