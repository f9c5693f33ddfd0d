package reporting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/storage/memory"
)

func setupTestData(t *testing.T) (*memory.QualityReportStore, *memory.FeatureRowStore) {
	t.Helper()
	ctx := context.Background()

	reportStore := memory.NewQualityReportStore()
	featureStore := memory.NewFeatureRowStore()

	report := &domain.QualityReport{
		AssetID:       "bitcoin",
		GeneratedAtMs: 1700000000000,
		RowCount:      150,
		Columns:       []string{"timestamp", "price_usd"},
		Checks: []domain.CheckResult{
			{Name: domain.CheckDataVolume, Passed: true, Threshold: ">= 100 rows", Actual: "150 rows"},
			{
				Name:       domain.CheckNullValues,
				Passed:     false,
				Threshold:  "<= 1.0% nulls per column",
				Actual:     "2.0% in price_usd",
				Violations: []string{"price_usd: 2.0% null"},
			},
		},
		Passed:       false,
		PassedChecks: 5,
		FailedChecks: 1,
	}
	if err := reportStore.Insert(ctx, report); err != nil {
		t.Fatalf("Insert report failed: %v", err)
	}

	rows := []*domain.FeatureRow{
		{AssetID: "bitcoin", TimestampMs: 1700000000000, Values: []float64{0.01, 50000}, Target: 120.5, TargetNorm: 0.0024},
		{AssetID: "bitcoin", TimestampMs: 1700000300000, Values: []float64{0.02, 50100}, Target: 121.0, TargetNorm: 0.0024},
	}
	if err := featureStore.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("Insert feature rows failed: %v", err)
	}

	return reportStore, featureStore
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestGenerator_Generate(t *testing.T) {
	reportStore, featureStore := setupTestData(t)

	gen := NewGenerator(reportStore, featureStore).WithClock(fixedNow)

	report, err := gen.Generate(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.Quality == nil || report.Quality.GeneratedAtMs != 1700000000000 {
		t.Fatalf("Expected latest quality report, got %+v", report.Quality)
	}
	if report.Dataset.Rows != 2 || report.Dataset.Features != 2 {
		t.Errorf("Unexpected dataset summary: %+v", report.Dataset)
	}
	if report.Dataset.TimeRangeStart != 1700000000000 || report.Dataset.TimeRangeEnd != 1700000300000 {
		t.Errorf("Unexpected time range: %+v", report.Dataset)
	}
}

func TestGenerator_GenerateWithoutReports(t *testing.T) {
	gen := NewGenerator(memory.NewQualityReportStore(), memory.NewFeatureRowStore()).WithClock(fixedNow)

	report, err := gen.Generate(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.Quality != nil {
		t.Errorf("Expected nil quality section, got %+v", report.Quality)
	}
	if report.Dataset.Rows != 0 {
		t.Errorf("Expected empty dataset summary, got %+v", report.Dataset)
	}
}

func TestRenderMarkdown(t *testing.T) {
	reportStore, featureStore := setupTestData(t)
	gen := NewGenerator(reportStore, featureStore).WithClock(fixedNow)

	report, err := gen.Generate(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Pipeline Report: bitcoin",
		"| data_volume | >= 100 rows | 150 rows | PASS |",
		"| null_values | <= 1.0% nulls per column | 2.0% in price_usd | FAIL |",
		"**Gate failed.**",
		"- null_values: price_usd: 2.0% null",
		"| Rows | 2 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderDatasetCSV(t *testing.T) {
	rows := []*domain.FeatureRow{
		{AssetID: "bitcoin", TimestampMs: 1000, Values: []float64{0.5, 2}, Target: 3, TargetNorm: 0.25},
	}

	csv, err := RenderDatasetCSV(rows, []string{"price_return_5m", "ma_5"})
	if err != nil {
		t.Fatalf("RenderDatasetCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != "timestamp,price_return_5m,ma_5,target,target_norm" {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if lines[1] != "1000,0.5,2,3,0.25" {
		t.Errorf("Unexpected row: %s", lines[1])
	}
}

func TestRenderDatasetCSV_SchemaMismatch(t *testing.T) {
	rows := []*domain.FeatureRow{
		{AssetID: "bitcoin", TimestampMs: 1000, Values: []float64{1}},
	}

	if _, err := RenderDatasetCSV(rows, []string{"a", "b"}); err == nil {
		t.Error("Expected error for schema length mismatch")
	}
}

func TestGenerator_WriteArtifacts(t *testing.T) {
	reportStore, featureStore := setupTestData(t)
	gen := NewGenerator(reportStore, featureStore).WithClock(fixedNow)

	outDir := t.TempDir()
	err := gen.WriteArtifacts(context.Background(), outDir, "bitcoin", []string{"price_return_5m", "ma_5"})
	if err != nil {
		t.Fatalf("WriteArtifacts failed: %v", err)
	}

	for _, name := range []string{"bitcoin_report.md", "bitcoin_quality.json", "bitcoin_dataset.csv"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("Expected artifact %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(outDir, "bitcoin_quality.json"))
	if err != nil {
		t.Fatalf("read quality artifact: %v", err)
	}
	if !strings.Contains(string(data), `"check": "data_volume"`) {
		t.Errorf("Quality artifact missing check results:\n%s", data)
	}
}
