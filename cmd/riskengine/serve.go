package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riskmonitor/engine/internal/alertengine"
	"github.com/riskmonitor/engine/internal/cache"
	"github.com/riskmonitor/engine/internal/chainclient"
	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/ingestion"
	"github.com/riskmonitor/engine/internal/protocol"
	"github.com/riskmonitor/engine/internal/riskengine"
	"github.com/riskmonitor/engine/internal/store"
	"github.com/riskmonitor/engine/internal/streambus"
	"github.com/riskmonitor/engine/pkg/database"
	"github.com/riskmonitor/engine/pkg/observability"
)

// staticWatchList resolves watched accounts from a fixed env-var list,
// the simplest WatchList that can drive the ingestion pipeline without a
// dedicated subscription-management surface.
type staticWatchList struct {
	accounts []string
}

func newStaticWatchList() *staticWatchList {
	raw := os.Getenv("WATCH_ACCOUNTS")
	if raw == "" {
		return &staticWatchList{}
	}
	return &staticWatchList{accounts: strings.Split(raw, ",")}
}

func (w *staticWatchList) AccountsFor(protocolName string, chainID uint64) []string {
	return w.accounts
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion pipeline, risk engine, and alert engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	logger := observability.NewLogger(cfg.Observability)
	tracer, err := observability.NewTracingProvider(cfg.Observability)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer tracer.Shutdown(context.Background())

	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := store.Migrate(context.Background(), db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	redis, err := database.NewRedisClient(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redis.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chains, err := chainclient.NewRegistry(ctx, cfg.Chains, logger)
	if err != nil {
		logger.Warn(ctx, "one or more chains failed to dial, continuing degraded", map[string]interface{}{"error": err.Error()})
	}

	registry := protocol.NewRegistry()
	for _, id := range chains.ChainIDs() {
		registry.Register(protocol.NewAaveAdapter(id))
		registry.Register(protocol.NewCompoundAdapter(id))
		registry.Register(protocol.NewCurveAdapter(id))
	}

	positions := store.NewPostgresPositionRepository(db)
	hashCache := cache.NewPositionHashCache(redis)
	bus := streambus.New(30*time.Second, logger)
	defer bus.Stop()

	pipeline := ingestion.NewPipeline(registry, positions, hashCache, bus, newStaticWatchList(), cfg.Ingestion, logger)

	alerts := store.NewPostgresAlertRepository(db)
	thresholds := store.NewPostgresThresholdRepository(db)
	webhooks := store.NewPostgresWebhookRepository(db)
	sink := alertengine.NewWebhookSink(cfg.Alerting.WebhookTimeout)
	engine := alertengine.NewEngine(thresholds, alerts, webhooks, bus, sink, cfg.Alerting, logger)

	snapshots := store.NewPostgresPoolSnapshotRepository(db)
	priceHistory := store.NewPostgresPriceHistoryRepository(db)
	risks := store.NewPostgresRiskAssessmentRepository(db)
	bridge := riskengine.NewBridge(riskengine.NewRegistry(), snapshots, priceHistory, risks, bus, cfg.RiskWeights, logger)

	components := []func() error{
		func() error { return pipeline.Run(ctx) },
		func() error { return bridge.Run(ctx) },
		func() error { return engine.Run(ctx) },
	}

	errCh := make(chan error, len(components))
	for _, fn := range components {
		go func(f func() error) { errCh <- f() }(fn)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info(ctx, "shutdown signal received", nil)
		cancel()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.Error(ctx, "component exited with error", err, nil)
			cancel()
			return err
		}
	}
	return nil
}
