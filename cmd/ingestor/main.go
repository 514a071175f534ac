package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	natsadapter "github.com/samirrijal/marketmap/internal/adapters/nats"
	"github.com/samirrijal/marketmap/internal/adapters/postgres"
	"github.com/samirrijal/marketmap/internal/adapters/usda"
	"github.com/samirrijal/marketmap/internal/core/ports"
	"github.com/samirrijal/marketmap/internal/core/usecases"
	"github.com/samirrijal/marketmap/internal/pkg/config"
	"github.com/samirrijal/marketmap/internal/pkg/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "ingestor",
	Short:        "Load farmers market listings from the USDA directory",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load("marketmap-ingestor")
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logging.Setup(cfg.Log.Level, cfg.Log.Format, "marketmap-ingestor")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [STATE...]",
	Short: "Upsert every listing of the given states (defaults to usda.states)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		states := cfg.USDA.States
		if len(args) > 0 {
			states = args
		}
		if len(states) == 0 {
			return fmt.Errorf("no states given and usda.states is empty")
		}

		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		var publisher ports.EventPublisher
		if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
			slog.Warn("nats unavailable, catalog events disabled", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}

		svc := usecases.NewCatalogService(newSource(), postgres.NewMarketRepo(db), publisher)
		total, err := svc.SyncStates(ctx, states)
		if err != nil {
			return err
		}
		slog.Info("ingestion complete", "states", strings.Join(states, ","), "markets", total)
		return nil
	},
}

var (
	nearLat    float64
	nearLon    float64
	nearRadius float64
)

var nearCmd = &cobra.Command{
	Use:   "near",
	Short: "Print live listings around a point without storing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := usecases.NewCatalogService(newSource(), nil, nil)
		markets, err := svc.FetchNearby(cmd.Context(), nearLat, nearLon, nearRadius)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(markets)
	},
}

func newSource() *usda.Client {
	return usda.New(usda.Options{
		BaseURL:        cfg.USDA.BaseURL,
		APIKey:         cfg.USDA.APIKey,
		Timeout:        cfg.USDA.Timeout,
		RatePerSecond:  cfg.USDA.RatePerSecond,
		Burst:          cfg.USDA.Burst,
		SampleFallback: cfg.USDA.SampleFallback,
	})
}

func init() {
	nearCmd.Flags().Float64Var(&nearLat, "lat", 0, "latitude (required)")
	nearCmd.Flags().Float64Var(&nearLon, "lon", 0, "longitude (required)")
	nearCmd.Flags().Float64Var(&nearRadius, "radius", 25, "search radius in miles")
	_ = nearCmd.MarkFlagRequired("lat")
	_ = nearCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(syncCmd, nearCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("ingestor failed", "error", err)
		os.Exit(1)
	}
}
