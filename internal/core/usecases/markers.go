package usecases

import (
	"strconv"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

// Marker icons understood by the map clients.
const (
	IconCluster        = "market-cluster"
	IconMarket         = "market"
	IconFavoriteMarket = "market-favorite"
)

// Present turns results into renderable markers, one per result, in order.
func Present(results []domain.ClusterResult) []domain.Marker {
	markers := make([]domain.Marker, 0, len(results))
	for _, r := range results {
		switch {
		case r.Kind == domain.KindCluster && r.Cluster != nil:
			markers = append(markers, clusterMarker(r.Cluster))
		case r.Point != nil:
			markers = append(markers, pointMarker(r.Point))
		}
	}
	return markers
}

func clusterMarker(c *domain.Cluster) domain.Marker {
	centroid := c.Centroid
	summary := c.Summary
	return domain.Marker{
		Key:        "cluster-" + strconv.FormatInt(c.ID, 10),
		Kind:       domain.MarkerCluster,
		Coordinate: centroid,
		Count:      c.Count,
		Badge:      badge(c.Count),
		Icon:       IconCluster,
		Event: domain.MarkerEvent{
			Type:          domain.EventClusterTapped,
			Centroid:      &centroid,
			Summary:       &summary,
			ClusterID:     c.ID,
			ExpansionZoom: c.ExpansionZoom,
		},
	}
}

func pointMarker(p *domain.GeoPoint) domain.Marker {
	icon := IconMarket
	if p.Market != nil && p.Market.IsFavorite {
		icon = IconFavoriteMarket
	}
	return domain.Marker{
		Key:        "market-" + p.ID,
		Kind:       domain.MarkerPoint,
		Coordinate: domain.Coordinate{Lat: p.Lat, Lon: p.Lon},
		Count:      1,
		Icon:       icon,
		Event: domain.MarkerEvent{
			Type:   domain.EventMarkerTapped,
			Market: p.Market,
		},
	}
}

func badge(count int) string {
	if count > 999 {
		return "999+"
	}
	return strconv.Itoa(count)
}
