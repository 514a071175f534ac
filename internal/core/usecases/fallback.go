package usecases

import "github.com/samirrijal/marketmap/internal/core/domain"

// ApplyFallback replaces results with the culled points when the view is
// zoomed in past threshold yet nothing would be drawn as a single marker.
// It reports whether the replacement happened.
func ApplyFallback(results []domain.ClusterResult, lonSpan float64, culled []domain.GeoPoint, threshold float64) ([]domain.ClusterResult, bool) {
	if !(lonSpan < threshold) || len(culled) == 0 {
		return results, false
	}
	for _, r := range results {
		if r.Kind == domain.KindIndividual {
			return results, false
		}
	}
	return individuals(culled), true
}

func individuals(points []domain.GeoPoint) []domain.ClusterResult {
	out := make([]domain.ClusterResult, len(points))
	for i, p := range points {
		out[i] = domain.Individual(p)
	}
	return out
}
