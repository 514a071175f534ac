package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketmap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Clustering pipeline metrics
	ClusterDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketmap",
		Subsystem: "clustering",
		Name:      "duration_seconds",
		Help:      "Duration of a full cluster view computation",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"platform"})

	IndexBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "clustering",
		Name:      "index_builds_total",
		Help:      "Total spatial index builds",
	}, []string{"backend"})

	IndexBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketmap",
		Subsystem: "clustering",
		Name:      "index_build_duration_seconds",
		Help:      "Duration of spatial index builds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"backend"})

	PointsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "clustering",
		Name:      "points_dropped_total",
		Help:      "Total market records dropped for invalid coordinates",
	})

	ClusterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "clustering",
		Name:      "failures_total",
		Help:      "Total clustering failures answered with unclustered points",
	}, []string{"stage"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "clustering",
		Name:      "fallbacks_total",
		Help:      "Total degenerate results replaced with individual points",
	}, []string{"platform"})

	Truncations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "clustering",
		Name:      "truncations_total",
		Help:      "Total result lists cut to the render budget",
	}, []string{"platform", "band"})

	// Upstream directory metrics
	USDAFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketmap",
		Subsystem: "usda",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of USDA directory requests",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"query"})

	USDAFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "usda",
		Name:      "fetch_errors_total",
		Help:      "Total USDA directory request errors",
	}, []string{"query"})

	MarketsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "catalog",
		Name:      "markets_synced_total",
		Help:      "Total markets written by catalog syncs",
	}, []string{"state"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketmap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketmap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketmap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketmap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path // route pattern keeps cardinality low
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool stats into the pool gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
