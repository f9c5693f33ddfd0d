package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/normalization"
)

// FileSource reads raw rows from a headered CSV file.
// Used for replaying archived extracts and for fixtures.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by a CSV file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Compile-time interface check.
var _ Source = (*FileSource)(nil)

// Fetch returns rows whose timestamp parses and falls within [from, to].
// Rows with unparseable timestamps are passed through; normalization
// counts and drops them.
func (s *FileSource) Fetch(_ context.Context, _ string, from, to int64) ([]domain.RawRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv %s has no header row", s.path)
	}

	header := records[0]
	var rows []domain.RawRow
	for _, record := range records[1:] {
		row := make(domain.RawRow, len(header))
		for i, col := range header {
			row[col] = record[i]
		}
		if ts, ok := normalization.ParseTimestamp(row[domain.ColumnTimestamp]); ok {
			if ts < from || ts > to {
				continue
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
