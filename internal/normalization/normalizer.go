package normalization

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"crypto-vol-lab/internal/domain"
)

// Normalize canonicalizes heterogeneous raw rows into an ordered,
// uniquely-timestamped series.
//
// Rules:
//   - rows are sorted by parsed timestamp ascending (stable);
//   - rows whose timestamp cannot be parsed are dropped and counted;
//   - exact duplicates of an earlier row are counted before dedup;
//   - of several rows sharing a timestamp the last one in input order wins;
//   - a present but non-numeric price cell is a fatal validation error.
//
// The resulting Series satisfies the strictly-increasing-timestamp invariant.
func Normalize(assetID string, rows []domain.RawRow) (*domain.Series, error) {
	columns := collectColumns(rows)

	stats := domain.SeriesStats{TotalRawRows: len(rows)}

	// Exact-duplicate accounting over the raw input.
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		key := rowKey(row, columns)
		if _, ok := seen[key]; ok {
			stats.DuplicateRows++
			continue
		}
		seen[key] = struct{}{}
	}

	type parsedRow struct {
		obs   domain.Observation
		order int // input position, used for stable keep-last dedup
	}

	parsed := make([]parsedRow, 0, len(rows))
	for i, row := range rows {
		ts, ok := ParseTimestamp(row[domain.ColumnTimestamp])
		if !ok {
			stats.TimestampParseErrors++
			continue
		}

		obs := domain.Observation{
			AssetID:     assetID,
			TimestampMs: ts,
			Price:       math.NaN(),
		}

		if cell, present := row[domain.ColumnPrice]; present && strings.TrimSpace(cell) != "" {
			price, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: non-numeric price %q: %w", i, cell, err)
			}
			obs.Price = price
		}

		obs.Open = optionalFloat(row, domain.ColumnOpen)
		obs.High = optionalFloat(row, domain.ColumnHigh)
		obs.Low = optionalFloat(row, domain.ColumnLow)
		obs.Close = optionalFloat(row, domain.ColumnClose)
		obs.Volume = optionalFloat(row, domain.ColumnVolume)
		obs.VolumeUSD = optionalFloat(row, domain.ColumnVolumeUSD)

		parsed = append(parsed, parsedRow{obs: obs, order: i})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].obs.TimestampMs < parsed[j].obs.TimestampMs
	})

	// Keep-last dedup on timestamp. Input order breaks ties.
	out := make([]domain.Observation, 0, len(parsed))
	for _, p := range parsed {
		n := len(out)
		if n > 0 && out[n-1].TimestampMs == p.obs.TimestampMs {
			out[n-1] = p.obs
			stats.TimestampCollisions++
			continue
		}
		out = append(out, p.obs)
	}

	return &domain.Series{
		AssetID:     assetID,
		Columns:     columns,
		ColumnTypes: inferColumnTypes(rows, columns),
		Rows:        out,
		Stats:       stats,
	}, nil
}

// canonicalOrder lists known columns in their preferred position.
var canonicalOrder = []string{
	domain.ColumnTimestamp,
	domain.ColumnPrice,
	domain.ColumnOpen,
	domain.ColumnHigh,
	domain.ColumnLow,
	domain.ColumnClose,
	domain.ColumnVolume,
	domain.ColumnVolumeUSD,
}

// collectColumns returns the union of row keys: known columns first in
// canonical order, unknown extras after them in lexical order.
func collectColumns(rows []domain.RawRow) []string {
	present := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			present[k] = struct{}{}
		}
	}

	var out []string
	for _, c := range canonicalOrder {
		if _, ok := present[c]; ok {
			out = append(out, c)
			delete(present, c)
		}
	}

	extras := make([]string, 0, len(present))
	for k := range present {
		extras = append(extras, k)
	}
	sort.Strings(extras)
	return append(out, extras...)
}

// inferColumnTypes classifies each column from its non-empty cells.
// A column is numeric only if every non-empty cell parses as a float,
// timestamp only if every non-empty cell parses as a timestamp.
func inferColumnTypes(rows []domain.RawRow, columns []string) map[string]domain.ColumnType {
	types := make(map[string]domain.ColumnType, len(columns))
	for _, col := range columns {
		numeric, timestamp := true, true
		nonEmpty := 0
		for _, row := range rows {
			cell, ok := row[col]
			if !ok || strings.TrimSpace(cell) == "" {
				continue
			}
			nonEmpty++
			cell = strings.TrimSpace(cell)
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
			}
			if _, ok := ParseTimestamp(cell); !ok {
				timestamp = false
			}
		}
		switch {
		case nonEmpty == 0:
			types[col] = domain.ExpectedColumnTypes[col] // nothing to contradict the expectation
			if types[col] == "" {
				types[col] = domain.ColumnTypeText
			}
		case col == domain.ColumnTimestamp && timestamp:
			types[col] = domain.ColumnTypeTimestamp
		case numeric:
			types[col] = domain.ColumnTypeNumeric
		case timestamp:
			types[col] = domain.ColumnTypeTimestamp
		default:
			types[col] = domain.ColumnTypeText
		}
	}
	return types
}

// timestampLayouts are tried in order for textual timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a raw timestamp cell into Unix milliseconds.
// Accepts integer epochs (seconds or milliseconds, decided by magnitude)
// and the textual layouts above. Textual forms without a zone are UTC.
func ParseTimestamp(cell string) (int64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}

	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		if n <= 0 {
			return 0, false
		}
		// 1e12 ms is ~2001; epochs below it are seconds.
		if n < 1_000_000_000_000 {
			return n * 1000, true
		}
		return n, true
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, cell, time.UTC); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func optionalFloat(row domain.RawRow, col string) *float64 {
	cell, ok := row[col]
	if !ok {
		return nil
	}
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	return &v
}

// rowKey serializes a row's cells in column order for duplicate detection.
func rowKey(row domain.RawRow, columns []string) string {
	var sb strings.Builder
	for _, col := range columns {
		sb.WriteString(row[col])
		sb.WriteByte('\x1f')
	}
	return sb.String()
}
