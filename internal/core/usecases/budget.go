package usecases

import "github.com/samirrijal/marketmap/internal/core/domain"

// Limit keeps the first results up to the profile's budget for band.
// A non-positive budget keeps everything.
func Limit(results []domain.ClusterResult, band domain.ZoomBand, profile domain.PerformanceProfile) ([]domain.ClusterResult, bool) {
	budget := profile.MaxMarkersAtZoom(band)
	if budget <= 0 || len(results) <= budget {
		return results, false
	}
	return results[:budget], true
}
