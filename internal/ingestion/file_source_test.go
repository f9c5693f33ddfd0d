package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"crypto-vol-lab/internal/domain"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestFileSource_Fetch(t *testing.T) {
	path := writeCSV(t, "timestamp,price_usd,volume\n"+
		"1700000000000,50000.12,120.5\n"+
		"1700000300000,50010.34,\n")

	source := NewFileSource(path)

	rows, err := source.Fetch(context.Background(), "bitcoin", 0, 1800000000000)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0][domain.ColumnPrice] != "50000.12" {
		t.Errorf("Unexpected price cell: %q", rows[0][domain.ColumnPrice])
	}
	if rows[1][domain.ColumnVolume] != "" {
		t.Errorf("Expected empty volume cell, got %q", rows[1][domain.ColumnVolume])
	}
}

func TestFileSource_WindowFilter(t *testing.T) {
	path := writeCSV(t, "timestamp,price_usd\n"+
		"1000,1.0\n"+
		"2000,2.0\n"+
		"3000,3.0\n")

	source := NewFileSource(path)

	rows, err := source.Fetch(context.Background(), "bitcoin", 2000, 3000)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Expected 2 rows in [2000, 3000], got %d", len(rows))
	}
}

func TestFileSource_KeepsUnparseableTimestamps(t *testing.T) {
	// Defective rows flow through to normalization, which counts them.
	path := writeCSV(t, "timestamp,price_usd\n"+
		"not-a-time,1.0\n"+
		"2000,2.0\n")

	source := NewFileSource(path)

	rows, err := source.Fetch(context.Background(), "bitcoin", 2000, 3000)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Expected defective row to pass through, got %d rows", len(rows))
	}
}

func TestFileSource_RaggedRow(t *testing.T) {
	path := writeCSV(t, "timestamp,price_usd\n1000,1.0,extra\n")

	source := NewFileSource(path)

	_, err := source.Fetch(context.Background(), "bitcoin", 0, 5000)
	if err == nil {
		t.Fatal("Expected error for ragged csv row")
	}
}
