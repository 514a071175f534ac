package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/marketmap/internal/pkg/metrics"
)

// MarkersSunset is when the /v1/markers alias stops being served.
var MarkersSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 300 requests per minute per IP. Map panning is chatty.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws" || c.Path() == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/markers", SunsetDate: MarkersSunset, Alternative: "/v1/clusters"},
	}))

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	const budget = 15 * time.Second
	v1 := app.Group("/v1")
	v1.Get("/profiles", ListProfilesHandler(deps))
	v1.Get("/profiles/:name", GetProfileHandler(deps))
	v1.Get("/markets", timeout.NewWithContext(ListMarketsHandler(deps), budget))
	v1.Get("/markets/nearby", timeout.NewWithContext(NearbyMarketsHandler(deps), budget))
	v1.Get("/markets/:id", timeout.NewWithContext(GetMarketHandler(deps), budget))
	v1.Get("/clusters", timeout.NewWithContext(ClustersHandler(deps), budget))
	v1.Get("/clusters/geojson", timeout.NewWithContext(ClustersGeoJSONHandler(deps), budget))
	v1.Get("/clusters/:id/leaves", timeout.NewWithContext(ClusterLeavesHandler(deps), budget))
	v1.Get("/clusters/:id/children", timeout.NewWithContext(ClusterChildrenHandler(deps), budget))
	v1.Get("/markers", timeout.NewWithContext(ClustersHandler(deps), budget))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.OpenAPIPath)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
