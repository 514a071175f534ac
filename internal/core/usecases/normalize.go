package usecases

import (
	"context"
	"log/slog"
	"math"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/pkg/metrics"
)

// Normalize converts markets into point features, dropping records without
// a usable coordinate. A zero latitude or longitude counts as unset.
// Survivors keep their input order.
func Normalize(ctx context.Context, markets []domain.Market) []domain.GeoPoint {
	points := make([]domain.GeoPoint, 0, len(markets))
	for i := range markets {
		m := markets[i]
		if reason := invalidCoordinate(m.Latitude, m.Longitude); reason != "" {
			slog.WarnContext(ctx, "dropping market with invalid coordinate",
				"market_id", m.ID,
				"lat", m.Latitude,
				"lon", m.Longitude,
				"reason", reason,
			)
			metrics.PointsDropped.Inc()
			continue
		}
		points = append(points, domain.GeoPoint{
			ID:     m.ID,
			Lat:    m.Latitude,
			Lon:    m.Longitude,
			Market: &m,
		})
	}
	return points
}

func invalidCoordinate(lat, lon float64) string {
	switch {
	case math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0):
		return "not finite"
	case lat == 0 || lon == 0:
		return "unset"
	case math.Abs(lat) > 90 || math.Abs(lon) > 180:
		return "out of range"
	}
	return ""
}
