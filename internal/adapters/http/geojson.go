package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

// ClustersGeoJSONHandler returns a region's markers as a GeoJSON
// FeatureCollection, with the property names map SDKs expect for clusters.
func ClustersGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region, err := parseRegion(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		profile, _ := deps.Profiles.Profile(c.Query("platform"))

		view, err := computeView(c.UserContext(), deps, region, profile)
		if err != nil {
			return errFrom(c, err)
		}

		body, err := featureCollection(view).MarshalJSON()
		if err != nil {
			return errInternal(c, "encode geojson")
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		c.Set("Cache-Control", "public, max-age=30")
		return c.Send(body)
	}
}

func featureCollection(view *domain.ClusterView) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(view.Bounds.Bound())
	fc.ExtraMembers = geojson.Properties{
		"zoom":      view.Zoom,
		"total":     view.Total,
		"fallback":  view.Fallback,
		"truncated": view.Truncated,
	}

	for _, m := range view.Markers {
		f := geojson.NewFeature(orb.Point{m.Coordinate.Lon, m.Coordinate.Lat})
		f.ID = m.Key
		f.Properties["icon"] = m.Icon
		if m.Kind == domain.MarkerCluster {
			f.Properties["cluster"] = true
			f.Properties["cluster_id"] = m.Event.ClusterID
			f.Properties["point_count"] = m.Count
			f.Properties["point_count_abbreviated"] = m.Badge
			f.Properties["expansion_zoom"] = m.Event.ExpansionZoom
		} else {
			f.Properties["cluster"] = false
			if mk := m.Event.Market; mk != nil {
				f.Properties["id"] = mk.ID
				f.Properties["name"] = mk.Name
				f.Properties["is_favorite"] = mk.IsFavorite
			}
		}
		fc.Append(f)
	}
	return fc
}
