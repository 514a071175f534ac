package ports

import (
	"context"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishCatalogUpdated(ctx context.Context, event *domain.CatalogUpdated) error
	PublishClustersComputed(ctx context.Context, event *domain.ClustersComputed) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeCatalogUpdates(ctx context.Context, handler func(ctx context.Context, event *domain.CatalogUpdated) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
