package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/marketmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/marketmap/internal/adapters/nats"
	"github.com/samirrijal/marketmap/internal/adapters/postgres"
	"github.com/samirrijal/marketmap/internal/adapters/supercluster"
	"github.com/samirrijal/marketmap/internal/adapters/valkey"
	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/ports"
	"github.com/samirrijal/marketmap/internal/core/usecases"
	"github.com/samirrijal/marketmap/internal/pkg/config"
	"github.com/samirrijal/marketmap/internal/pkg/logging"
	"github.com/samirrijal/marketmap/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("marketmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache is optional
	var cache ports.CacheService
	var cachePinger http.Pinger
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache, cachePinger = vc, vc
	}

	// NATS is optional; without it events are dropped and the WebSocket
	// relay is off.
	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	engine, err := supercluster.New(cfg.Clustering.Backend)
	if err != nil {
		log.Fatalf("clustering: %v", err)
	}
	clusterSvc, err := usecases.NewClusterService(engine, string(engine.Backend()), cfg.Clustering.IndexCacheSize, publisher, logger)
	if err != nil {
		log.Fatalf("cluster service: %v", err)
	}
	marketSvc := usecases.NewMarketService(postgres.NewMarketRepo(db), cache)

	// Drop cached region loads when a state is re-synced.
	if publisher != nil {
		host, _ := os.Hostname()
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "api-"+host)
		if err != nil {
			slog.Warn("catalog subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			err = sub.SubscribeCatalogUpdates(ctx, func(ctx context.Context, ev *domain.CatalogUpdated) error {
				marketSvc.InvalidateState(ctx, ev.State)
				slog.InfoContext(ctx, "catalog updated", "state", ev.State, "markets", ev.Count)
				return nil
			})
			if err != nil {
				slog.Warn("catalog subscribe failed", "error", err)
			}
		}
	}

	deps := &http.Dependencies{
		Markets:  marketSvc,
		Clusters: clusterSvc,
		Profiles: cfg,
		NATS:     natsConn,
		DB:       db,
		Cache:    cachePinger,
		Version:  version,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "Marketmap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "backend", engine.Backend(), "platforms", cfg.Platforms())
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
