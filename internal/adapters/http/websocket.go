package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/marketmap/internal/adapters/nats"
	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/usecases"
	"github.com/samirrijal/marketmap/internal/pkg/metrics"
)

// wsMessage is sent by the client whenever its map region changes.
type wsMessage struct {
	Action   string            `json:"action"`   // "region"
	Platform string            `json:"platform"` // optional, keeps the previous platform when empty
	Region   *domain.MapRegion `json:"region"`
}

// wsFrame is sent to the client.
type wsFrame struct {
	Type    string              `json:"type"` // "clusters" | "catalog_updated" | "error"
	View    *domain.ClusterView `json:"view,omitempty"`
	Catalog json.RawMessage     `json:"catalog,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// WebSocketHandler streams cluster views for the client's map region.
// Clients send {"action":"region","platform":"ios","region":{"lat":..,"lon":..,"lat_span":..,"lon_span":..}}.
// Bursts of region changes are debounced per the platform profile, which a
// message may switch, and only the latest region is answered. Catalog updates
// are relayed and trigger a refresh of the current region.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		var stateMu sync.Mutex
		profile, _ := deps.Profiles.Profile(c.Query("platform"))
		var current *domain.MapRegion

		currentProfile := func() domain.PerformanceProfile {
			stateMu.Lock()
			defer stateMu.Unlock()
			return profile
		}

		scheduler := usecases.NewRegionScheduler(profile.Debounce,
			func(ctx context.Context, region domain.MapRegion) (*domain.ClusterView, error) {
				return computeView(ctx, deps, region, currentProfile())
			},
			func(view *domain.ClusterView, err error) {
				if err != nil {
					_ = writeJSON(wsFrame{Type: "error", Error: err.Error()})
					return
				}
				_ = writeJSON(wsFrame{Type: "clusters", View: view})
			},
		)
		go scheduler.Run(ctx)

		if deps.NATS != nil {
			sub, err := deps.NATS.Subscribe(natsadapter.SubjectCatalogUpdated, func(msg *nats.Msg) {
				_ = writeJSON(wsFrame{Type: "catalog_updated", Catalog: json.RawMessage(msg.Data)})
				stateMu.Lock()
				region := current
				stateMu.Unlock()
				if region != nil {
					scheduler.Submit(*region)
				}
			})
			if err != nil {
				slog.Warn("ws catalog subscribe failed", "error", err)
			} else {
				defer func() { _ = sub.Unsubscribe() }()
			}
		}

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsFrame{Type: "error", Error: "invalid JSON"})
				continue
			}
			if m.Action != "region" {
				_ = writeJSON(wsFrame{Type: "error", Error: "unknown action: " + m.Action})
				continue
			}
			if m.Region == nil {
				_ = writeJSON(wsFrame{Type: "error", Error: "region is required"})
				continue
			}
			if err := m.Region.Validate(); err != nil {
				_ = writeJSON(wsFrame{Type: "error", Error: err.Error()})
				continue
			}

			stateMu.Lock()
			if m.Platform != "" {
				profile, _ = deps.Profiles.Profile(m.Platform)
				scheduler.SetDebounce(profile.Debounce)
			}
			region := *m.Region
			current = &region
			stateMu.Unlock()

			scheduler.Submit(region)
		}

		cancel()
		<-scheduler.Done()
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
