// Package main extracts raw price history into the observation archive.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-vol-lab/internal/config"
	"crypto-vol-lab/internal/ingestion"
	"crypto-vol-lab/internal/logging"
	"crypto-vol-lab/internal/observability"
	"crypto-vol-lab/internal/storage"
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
		With().Str("component", "extract").Logger()

	metrics := observability.NewMetrics("", nil)
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	store, cleanup, err := openObservationStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open observation store")
	}
	defer cleanup()

	// Live mode: stream ticks until interrupted instead of pulling
	// history windows.
	if cfg.API.WSEndpoint != "" {
		source := ingestion.NewWSPriceSource(cfg.API.WSEndpoint, cfg.Assets, nil).
			WithLogger(logger)
		stats, err := ingestion.NewCollector(source, store).
			WithLogger(logger).
			Collect(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("live collection failed")
		}
		fmt.Printf("live: %d ticks, %d stored across %d flushes\n",
			stats.Ticks, stats.Inserted, stats.Flushes)
		return
	}

	source := ingestion.NewRESTSource(cfg.API.BaseURL, cfg.API.Key,
		ingestion.WithInterval(cfg.Interval),
		ingestion.WithRateLimit(cfg.API.RequestsPerSec),
	)
	extractor := ingestion.NewExtractor(source, store).
		WithBackfill(cfg.Backfill).
		WithLogger(logger)

	exitCode := 0
	for _, assetID := range cfg.Assets {
		start := time.Now()
		result, err := extractor.Run(ctx, assetID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error().Err(err).Str("asset_id", assetID).Msg("extraction failed")
			metrics.ExtractionErrors.WithLabelValues(assetID).Inc()
			exitCode = 1
			continue
		}
		metrics.RawRowsFetched.WithLabelValues(assetID).Add(float64(result.RawRows))
		metrics.ObservationsStored.WithLabelValues(assetID).Add(float64(result.Inserted))
		fmt.Printf("%s: %d raw rows, %d stored (%.1fs)\n",
			assetID, result.RawRows, result.Inserted, time.Since(start).Seconds())
	}

	os.Exit(exitCode)
}

// openObservationStore returns the configured store and a cleanup
// function closing the underlying pool.
func openObservationStore(ctx context.Context, cfg *config.Config) (storage.ObservationStore, func(), error) {
	if cfg.UseMemory {
		return memory.NewObservationStore(), func() {}, nil
	}
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.ApplyPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}
	return pgstore.NewObservationStore(pool), func() { pool.Close() }, nil
}
