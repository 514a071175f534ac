package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/usecases"
)

// ProfileSource resolves platform names to performance profiles.
type ProfileSource interface {
	Profile(name string) (domain.PerformanceProfile, bool)
	Platforms() []string
}

// Pinger is a backing service the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Markets  *usecases.MarketService
	Clusters *usecases.ClusterService
	Profiles ProfileSource
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger
	Version  string

	// OpenAPIPath defaults to api/openapi.yaml relative to the working directory.
	OpenAPIPath string
}
