package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

// Subjects used by the market services.
const (
	SubjectCatalogUpdated   = "markets.catalog.updated"
	SubjectClustersComputed = "markets.clusters.computed"

	catalogStream = "MARKET_CATALOG"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure the catalog stream exists
	cfg := nats.StreamConfig{
		Name:      catalogStream,
		Subjects:  []string{"markets.catalog.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// stream exists, update it
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishCatalogUpdated persists the event in the catalog stream.
func (p *Publisher) PublishCatalogUpdated(ctx context.Context, event *domain.CatalogUpdated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectCatalogUpdated, data, nats.Context(ctx), nats.MsgId(event.ID))
	return err
}

// PublishClustersComputed is fire-and-forget; no stream keeps these.
func (p *Publisher) PublishClustersComputed(ctx context.Context, event *domain.ClustersComputed) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectClustersComputed, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
