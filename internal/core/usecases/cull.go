package usecases

import "github.com/samirrijal/marketmap/internal/core/domain"

// ComputeBounds returns the box covered by region.
func ComputeBounds(region domain.MapRegion) domain.ViewportBounds {
	return region.Bounds()
}

// Cull keeps the points inside bounds, edges included, in input order.
func Cull(points []domain.GeoPoint, bounds domain.ViewportBounds) []domain.GeoPoint {
	out := make([]domain.GeoPoint, 0, len(points))
	for _, p := range points {
		if bounds.Contains(p.Lon, p.Lat) {
			out = append(out, p)
		}
	}
	return out
}
