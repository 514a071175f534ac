package http

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/usecases"
)

// ListProfilesHandler returns the performance profile of every platform.
func ListProfilesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		profiles := []domain.PerformanceProfile{}
		for _, name := range deps.Profiles.Platforms() {
			p, _ := deps.Profiles.Profile(name)
			profiles = append(profiles, p)
		}
		return c.JSON(profiles)
	}
}

// GetProfileHandler returns one platform's profile.
func GetProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := deps.Profiles.Profile(c.Params("name"))
		if !ok {
			return errNotFound(c, "unknown platform: "+c.Params("name"))
		}
		return c.JSON(p)
	}
}

// ListMarketsHandler returns a page of markets, optionally for one state.
func ListMarketsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}

		markets, total, err := deps.Markets.List(c.UserContext(), c.Query("state"), offset, limit)
		if err != nil {
			return errFrom(c, err)
		}
		if limit <= 0 || limit > 100 {
			limit = 50
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: markets, Pagination: pg})
	}
}

// NearbyMarketsHandler returns markets within a radius (miles) of a point.
func NearbyMarketsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, err1 := requiredFloat(c, "lat")
		lon, err2 := requiredFloat(c, "lon")
		if err1 != nil || err2 != nil {
			return errBadRequest(c, "lat and lon are required")
		}
		radius := c.QueryFloat("radius", 25)
		if radius <= 0 || radius > usecases.MaxRadiusMiles {
			return errBadRequest(c, fmt.Sprintf("radius must be between 0 and %.0f miles", usecases.MaxRadiusMiles))
		}
		limit := c.QueryInt("limit", 50)
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		markets, err := deps.Markets.FindNearby(c.UserContext(), lat, lon, radius, limit)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(markets)
	}
}

// GetMarketHandler returns a single market by ID.
func GetMarketHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := deps.Markets.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(m)
	}
}

// ClustersHandler returns the markers for a map region.
func ClustersHandler(deps *Dependencies) fiber.Handler {
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
		c.Set("Cache-Control", "public, max-age=30")
		return c.JSON(view)
	}
}

// ClusterLeavesHandler returns the markets inside one cluster of a region.
func ClusterLeavesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return errBadRequest(c, "cluster id must be an integer")
		}
		region, err := parseRegion(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		profile, _ := deps.Profiles.Profile(c.Query("platform"))
		limit := c.QueryInt("limit", 10)
		offset := c.QueryInt("offset", 0)
		if limit <= 0 || limit > 500 {
			limit = 10
		}
		if offset < 0 {
			offset = 0
		}

		markets, err := deps.Markets.InRegion(c.UserContext(), region)
		if err != nil {
			return errFrom(c, err)
		}
		leaves, err := deps.Clusters.Leaves(c.UserContext(), markets, region, profile, id, limit, offset)
		if err != nil {
			return errFrom(c, err)
		}

		out := make([]domain.Market, 0, len(leaves))
		for _, p := range leaves {
			if p.Market != nil {
				out = append(out, *p.Market)
			}
		}
		return c.JSON(fiber.Map{"cluster_id": id, "offset": offset, "limit": limit, "markets": out})
	}
}

// ClusterChildrenHandler returns the markers one zoom level inside a cluster,
// as a client shows them after tapping it.
func ClusterChildrenHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return errBadRequest(c, "cluster id must be an integer")
		}
		region, err := parseRegion(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		profile, _ := deps.Profiles.Profile(c.Query("platform"))

		markets, err := deps.Markets.InRegion(c.UserContext(), region)
		if err != nil {
			return errFrom(c, err)
		}
		children, err := deps.Clusters.Children(c.UserContext(), markets, region, profile, id)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(fiber.Map{"cluster_id": id, "markers": usecases.Present(children)})
	}
}

func computeView(ctx context.Context, deps *Dependencies, region domain.MapRegion, profile domain.PerformanceProfile) (*domain.ClusterView, error) {
	markets, err := deps.Markets.InRegion(ctx, region)
	if err != nil {
		return nil, err
	}
	return deps.Clusters.View(ctx, markets, region, profile)
}

func parseRegion(c *fiber.Ctx) (domain.MapRegion, error) {
	var r domain.MapRegion
	var err error
	if r.CenterLat, err = requiredFloat(c, "lat"); err != nil {
		return r, err
	}
	if r.CenterLon, err = requiredFloat(c, "lon"); err != nil {
		return r, err
	}
	if r.LatSpan, err = requiredFloat(c, "lat_span"); err != nil {
		return r, err
	}
	if r.LonSpan, err = requiredFloat(c, "lon_span"); err != nil {
		return r, err
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

func requiredFloat(c *fiber.Ctx, key string) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}
