package reporting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crypto-vol-lab/internal/storage"
)

// Generator produces run reports from stored data.
type Generator struct {
	reportStore  storage.QualityReportStore
	featureStore storage.FeatureRowStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(reportStore storage.QualityReportStore, featureStore storage.FeatureRowStore) *Generator {
	return &Generator{
		reportStore:  reportStore,
		featureStore: featureStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a run report for an asset from the latest stored state.
// A missing quality report is not an error; the section renders as absent.
func (g *Generator) Generate(ctx context.Context, assetID string) (*RunReport, error) {
	report := &RunReport{
		GeneratedAt: g.now(),
		AssetID:     assetID,
	}

	quality, err := g.reportStore.GetLatest(ctx, assetID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load quality report: %w", err)
	}
	report.Quality = quality

	rows, err := g.featureStore.GetByAssetID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load feature rows: %w", err)
	}
	if len(rows) > 0 {
		report.Dataset = DatasetSummary{
			Rows:           len(rows),
			Features:       len(rows[0].Values),
			TimeRangeStart: rows[0].TimestampMs,
			TimeRangeEnd:   rows[len(rows)-1].TimestampMs,
		}
	}

	return report, nil
}

// WriteArtifacts renders the report and dataset into outDir:
// <asset>_report.md, <asset>_quality.json and <asset>_dataset.csv.
// The CSV is skipped when no feature rows exist.
func (g *Generator) WriteArtifacts(ctx context.Context, outDir, assetID string, featureNames []string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	report, err := g.Generate(ctx, assetID)
	if err != nil {
		return err
	}

	md := RenderMarkdown(report)
	if err := os.WriteFile(filepath.Join(outDir, assetID+"_report.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}

	if report.Quality != nil {
		f, err := os.Create(filepath.Join(outDir, assetID+"_quality.json"))
		if err != nil {
			return fmt.Errorf("create quality artifact: %w", err)
		}
		if err := WriteQualityReportJSON(f, report.Quality); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close quality artifact: %w", err)
		}
	}

	if report.Dataset.Rows > 0 {
		rows, err := g.featureStore.GetByAssetID(ctx, assetID)
		if err != nil {
			return fmt.Errorf("load feature rows: %w", err)
		}
		csv, err := RenderDatasetCSV(rows, featureNames)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(outDir, assetID+"_dataset.csv"), []byte(csv), 0o644); err != nil {
			return fmt.Errorf("write dataset csv: %w", err)
		}
	}

	return nil
}
