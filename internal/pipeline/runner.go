// Package pipeline orchestrates one end-to-end run: load observations,
// run the quality gate, build features and labels, assemble the
// dataset, and persist the outputs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crypto-vol-lab/internal/dataset"
	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/features"
	"crypto-vol-lab/internal/observability"
	"crypto-vol-lab/internal/quality"
	"crypto-vol-lab/internal/reporting"
	"crypto-vol-lab/internal/storage"
)

// Runner executes the quality gate and feature pipeline for one asset.
// The gate runs first; a failed gate halts the run before any feature
// work, leaving only the persisted quality report.
type Runner struct {
	observations storage.ObservationStore
	reports      storage.QualityReportStore
	featureRows  storage.FeatureRowStore

	qualityCfg   quality.Config
	featureCfg   features.Config
	horizonHours int
	outputDir    string

	metrics *observability.Metrics
	clock   func() time.Time
	log     zerolog.Logger
}

// Result summarizes one pipeline run.
type Result struct {
	AssetID     string
	Report      *domain.QualityReport
	GatePassed  bool
	Halted      bool // true when the gate failed and feature work was skipped
	SeriesRows  int
	DatasetRows int
	Duration    time.Duration
}

// NewRunner creates a runner with default configs and a 1 hour target
// horizon.
func NewRunner(
	observations storage.ObservationStore,
	reports storage.QualityReportStore,
	featureRows storage.FeatureRowStore,
) *Runner {
	return &Runner{
		observations: observations,
		reports:      reports,
		featureRows:  featureRows,
		qualityCfg:   quality.DefaultConfig(),
		featureCfg:   features.DefaultConfig(),
		horizonHours: 1,
		clock:        func() time.Time { return time.Now().UTC() },
		log:          zerolog.Nop(),
	}
}

// WithQualityConfig overrides the gate thresholds.
func (r *Runner) WithQualityConfig(cfg quality.Config) *Runner {
	r.qualityCfg = cfg
	return r
}

// WithFeatureConfig overrides the feature windows.
func (r *Runner) WithFeatureConfig(cfg features.Config) *Runner {
	r.featureCfg = cfg
	return r
}

// WithHorizon sets the label horizon in hours.
func (r *Runner) WithHorizon(hours int) *Runner {
	r.horizonHours = hours
	return r
}

// WithOutputDir enables report artifact generation into dir.
func (r *Runner) WithOutputDir(dir string) *Runner {
	r.outputDir = dir
	return r
}

// WithMetrics attaches Prometheus metrics.
func (r *Runner) WithMetrics(m *observability.Metrics) *Runner {
	r.metrics = m
	return r
}

// WithClock sets a custom clock for deterministic output.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

// WithLogger attaches a logger.
func (r *Runner) WithLogger(log zerolog.Logger) *Runner {
	r.log = log
	return r
}

// Run executes the pipeline for one asset.
// A failed quality gate is not an error: the run halts, the report is
// persisted, and the result carries Halted=true. Errors are reserved
// for storage and assembly failures.
func (r *Runner) Run(ctx context.Context, assetID string) (*Result, error) {
	start := r.clock()

	result, err := r.run(ctx, assetID)
	duration := r.clock().Sub(start)
	if result != nil {
		result.Duration = duration
	}

	if r.metrics != nil {
		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case result.Halted:
			status = "halted"
		}
		r.metrics.RecordPipelineRun(assetID, status, duration.Seconds())
		if result != nil && result.Report != nil {
			var failed []string
			for _, check := range result.Report.Checks {
				if !check.Passed {
					failed = append(failed, check.Name)
				}
			}
			r.metrics.RecordQualityRun(assetID, result.Report.Passed, failed, result.Report.RowCount)
		}
		if result != nil {
			r.metrics.DatasetRows.WithLabelValues(assetID).Set(float64(result.DatasetRows))
		}
	}
	return result, err
}

func (r *Runner) run(ctx context.Context, assetID string) (*Result, error) {
	obs, err := r.observations.GetByAssetID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	series := domain.SeriesFromObservations(assetID, obs)

	result := &Result{AssetID: assetID, SeriesRows: series.Len()}

	// Quality gate. The report is persisted even when the gate fails:
	// it is the audit trail explaining why no dataset was produced.
	checker := quality.NewChecker(r.qualityCfg).WithClock(r.clock).WithLogger(r.log)
	report := checker.RunAll(series)
	result.Report = report
	result.GatePassed = report.Passed

	if err := r.reports.Insert(ctx, report); err != nil {
		return nil, fmt.Errorf("persist quality report: %w", err)
	}

	if !report.Passed {
		result.Halted = true
		r.log.Warn().
			Str("asset_id", assetID).
			Int("failed_checks", report.FailedChecks).
			Msg("quality gate failed, halting pipeline")
		return result, r.writeArtifacts(ctx, assetID)
	}

	// Feature and label construction.
	builder := features.NewBuilder(r.featureCfg)
	fs := builder.Build(series)

	vol1h := fs.Column("volatility_1h")
	target, targetNorm := features.BuildTarget(vol1h, series.Prices(), r.horizonHours)

	ds, err := dataset.Assemble(assetID, fs, target, targetNorm, features.DefaultSchema())
	if err != nil {
		return nil, fmt.Errorf("assemble dataset: %w", err)
	}
	result.DatasetRows = ds.Len()

	if ds.Len() > 0 {
		if err := r.featureRows.InsertBulk(ctx, ds.Rows()); err != nil {
			return nil, fmt.Errorf("persist feature rows: %w", err)
		}
	}

	r.log.Info().
		Str("asset_id", assetID).
		Int("series_rows", series.Len()).
		Int("dataset_rows", ds.Len()).
		Msg("pipeline run complete")

	return result, r.writeArtifacts(ctx, assetID)
}

// writeArtifacts renders the markdown, JSON and CSV outputs when an
// output directory is configured.
func (r *Runner) writeArtifacts(ctx context.Context, assetID string) error {
	if r.outputDir == "" {
		return nil
	}
	gen := reporting.NewGenerator(r.reports, r.featureRows).WithClock(r.clock)
	if err := gen.WriteArtifacts(ctx, r.outputDir, assetID, features.DefaultSchema().Names()); err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}
	return nil
}
