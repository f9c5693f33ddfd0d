// Package main runs the quality gate and feature pipeline.
// Executes: load observations → quality gate → features → labels →
// dataset assembly → persisted rows + report artifacts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-vol-lab/internal/config"
	"crypto-vol-lab/internal/logging"
	"crypto-vol-lab/internal/observability"
	"crypto-vol-lab/internal/pipeline"
	"crypto-vol-lab/internal/storage"
	chstore "crypto-vol-lab/internal/storage/clickhouse"
	"crypto-vol-lab/internal/storage/memory"
	"crypto-vol-lab/internal/storage/migrations"
	pgstore "crypto-vol-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With().Str("component", "pipeline").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("cancelling pipeline")
		cancel()
	}()

	stores, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer cleanup()

	// Memory mode runs against a synthetic series so the pipeline can
	// be demonstrated without an extraction pass.
	if cfg.UseMemory {
		for _, assetID := range cfg.Assets {
			fixture := pipeline.DefaultFixtureConfig(assetID, time.Now().UTC())
			if err := pipeline.LoadFixtures(ctx, stores.observations, fixture); err != nil {
				logger.Fatal().Err(err).Msg("load fixtures")
			}
		}
	}

	runner := pipeline.NewRunner(stores.observations, stores.reports, stores.featureRows).
		WithQualityConfig(cfg.QualityGateConfig()).
		WithHorizon(cfg.TargetHorizonHours).
		WithOutputDir(cfg.OutputDir).
		WithMetrics(observability.NewMetrics("", nil)).
		WithLogger(logger)

	exitCode := 0
	for _, assetID := range cfg.Assets {
		result, err := runner.Run(ctx, assetID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error().Err(err).Str("asset_id", assetID).Msg("pipeline failed")
			exitCode = 1
			continue
		}
		if result.Halted {
			fmt.Printf("%s: quality gate FAILED (%d/%d checks), pipeline halted\n",
				assetID, result.Report.FailedChecks, len(result.Report.Checks))
			exitCode = 1
			continue
		}
		fmt.Printf("%s: gate passed, %d series rows -> %d dataset rows (%.1fs)\n",
			assetID, result.SeriesRows, result.DatasetRows, result.Duration.Seconds())
	}

	if cfg.OutputDir != "" {
		fmt.Printf("Artifacts written to %s/\n", cfg.OutputDir)
	}
	os.Exit(exitCode)
}

// pipelineStores bundles the three stores one run needs.
type pipelineStores struct {
	observations storage.ObservationStore
	reports      storage.QualityReportStore
	featureRows  storage.FeatureRowStore
}

func openStores(ctx context.Context, cfg *config.Config) (*pipelineStores, func(), error) {
	if cfg.UseMemory {
		return &pipelineStores{
			observations: memory.NewObservationStore(),
			reports:      memory.NewQualityReportStore(),
			featureRows:  memory.NewFeatureRowStore(),
		}, func() {}, nil
	}

	if cfg.ClickhouseDSN == "" {
		return nil, nil, fmt.Errorf("CLICKHOUSE_DSN is required unless USE_MEMORY=true")
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.ApplyPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}
	conn, err := migrations.ApplyClickhouse(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return &pipelineStores{
		observations: pgstore.NewObservationStore(pool),
		reports:      pgstore.NewQualityReportStore(pool),
		featureRows:  chstore.NewFeatureRowStore(conn),
	}, cleanup, nil
}
