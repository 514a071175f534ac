package main

import (
	"context"
	"log"
	"log/slog"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/marketmap/internal/adapters/nats"
	"github.com/samirrijal/marketmap/internal/adapters/postgres"
	"github.com/samirrijal/marketmap/internal/adapters/usda"
	"github.com/samirrijal/marketmap/internal/adapters/valkey"
	"github.com/samirrijal/marketmap/internal/core/ports"
	"github.com/samirrijal/marketmap/internal/core/usecases"
	"github.com/samirrijal/marketmap/internal/pkg/config"
	"github.com/samirrijal/marketmap/internal/pkg/logging"
	"github.com/samirrijal/marketmap/internal/workflows"
)

const cronWorkflowID = "catalog-sync"

func main() {
	cfg, err := config.Load("marketmap-syncer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "marketmap-syncer")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	repo := postgres.NewMarketRepo(db)

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, region cache invalidation disabled", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}

	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, catalog events disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	source := usda.New(usda.Options{
		BaseURL:        cfg.USDA.BaseURL,
		APIKey:         cfg.USDA.APIKey,
		Timeout:        cfg.USDA.Timeout,
		RatePerSecond:  cfg.USDA.RatePerSecond,
		Burst:          cfg.USDA.Burst,
		SampleFallback: cfg.USDA.SampleFallback,
	})

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.CatalogSyncWorkflow)
	w.RegisterActivity(&workflows.CatalogActivities{
		Catalog: usecases.NewCatalogService(source, repo, publisher),
		Markets: usecases.NewMarketService(repo, cache),
	})

	// One cron run per deployment; an already running schedule is kept.
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    cronWorkflowID,
		TaskQueue:             cfg.Temporal.TaskQueue,
		CronSchedule:          "@every " + cfg.Temporal.SyncInterval.String(),
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.CatalogSyncWorkflow, workflows.CatalogSyncInput{States: cfg.USDA.States})
	if err != nil {
		slog.Warn("catalog sync schedule not started", "error", err)
	} else {
		slog.Info("catalog sync scheduled", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "every", cfg.Temporal.SyncInterval)
	}

	slog.Info("syncer worker started", "task_queue", cfg.Temporal.TaskQueue, "states", cfg.USDA.States)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
