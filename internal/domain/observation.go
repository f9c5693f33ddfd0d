package domain

import (
	"math"
	"sort"
)

// Canonical column names for raw market data rows.
const (
	ColumnTimestamp = "timestamp"
	ColumnPrice     = "price_usd"
	ColumnOpen      = "open"
	ColumnHigh      = "high"
	ColumnLow       = "low"
	ColumnClose     = "close"
	ColumnVolume    = "volume"
	ColumnVolumeUSD = "volume_usd"
)

// RequiredColumns must be present in every raw series.
var RequiredColumns = []string{ColumnTimestamp, ColumnPrice}

// ColumnType classifies the inferred type of a raw column.
type ColumnType string

const (
	ColumnTypeTimestamp ColumnType = "timestamp"
	ColumnTypeNumeric   ColumnType = "numeric"
	ColumnTypeText      ColumnType = "text"
)

// ExpectedColumnTypes maps known columns to their expected type.
var ExpectedColumnTypes = map[string]ColumnType{
	ColumnTimestamp: ColumnTypeTimestamp,
	ColumnPrice:     ColumnTypeNumeric,
	ColumnOpen:      ColumnTypeNumeric,
	ColumnHigh:      ColumnTypeNumeric,
	ColumnLow:       ColumnTypeNumeric,
	ColumnClose:     ColumnTypeNumeric,
	ColumnVolume:    ColumnTypeNumeric,
	ColumnVolumeUSD: ColumnTypeNumeric,
}

// RawRow is a single unvalidated record as produced by an extraction source.
// Keys are column names, values are the raw cell contents.
type RawRow map[string]string

// Observation is one validated point of the price series.
// Optional OHLCV fields are nil when the source did not provide them.
// Price is NaN when the cell was present but empty.
type Observation struct {
	AssetID     string
	TimestampMs int64
	Price       float64
	Open        *float64
	High        *float64
	Low         *float64
	Close       *float64
	Volume      *float64
	VolumeUSD   *float64
}

// PriceMissing reports whether the price cell was empty.
func (o *Observation) PriceMissing() bool {
	return math.IsNaN(o.Price)
}

// SeriesStats carries counts collected during normalization.
// The quality gate consumes them for the duplicate and range checks.
type SeriesStats struct {
	TotalRawRows         int // raw input rows before any dedup or drop
	DuplicateRows        int // exact duplicates of a previous raw row
	TimestampParseErrors int // rows dropped due to an unparseable timestamp
	TimestampCollisions  int // rows replaced by a later row with the same timestamp
}

// Series is a canonicalized, time-ordered price series.
// Invariant: Rows are sorted by TimestampMs, strictly increasing, no duplicates.
type Series struct {
	AssetID     string
	Columns     []string              // columns present in the raw input, canonical order
	ColumnTypes map[string]ColumnType // inferred type per column
	Rows        []Observation
	Stats       SeriesStats
}

// SeriesFromObservations rebuilds a canonical series from stored
// observations. The input must already be timestamp-ascending with
// unique timestamps, which the observation stores guarantee. Columns
// are inferred from the fields the observations actually carry.
func SeriesFromObservations(assetID string, obs []*Observation) *Series {
	series := &Series{
		AssetID:     assetID,
		ColumnTypes: map[string]ColumnType{},
		Rows:        make([]Observation, len(obs)),
	}

	present := map[string]bool{ColumnTimestamp: true, ColumnPrice: true}
	for i, o := range obs {
		series.Rows[i] = *o
		if o.Open != nil {
			present[ColumnOpen] = true
		}
		if o.High != nil {
			present[ColumnHigh] = true
		}
		if o.Low != nil {
			present[ColumnLow] = true
		}
		if o.Close != nil {
			present[ColumnClose] = true
		}
		if o.Volume != nil {
			present[ColumnVolume] = true
		}
		if o.VolumeUSD != nil {
			present[ColumnVolumeUSD] = true
		}
	}

	for col := range ExpectedColumnTypes {
		if present[col] {
			series.Columns = append(series.Columns, col)
			series.ColumnTypes[col] = ExpectedColumnTypes[col]
		}
	}
	sortColumnsCanonical(series.Columns)

	series.Stats = SeriesStats{TotalRawRows: len(obs)}
	return series
}

// sortColumnsCanonical orders columns timestamp-first, then the OHLCV
// order used by the raw sources.
func sortColumnsCanonical(columns []string) {
	rank := map[string]int{
		ColumnTimestamp: 0,
		ColumnPrice:     1,
		ColumnOpen:      2,
		ColumnHigh:      3,
		ColumnLow:       4,
		ColumnClose:     5,
		ColumnVolume:    6,
		ColumnVolumeUSD: 7,
	}
	sort.Slice(columns, func(i, j int) bool {
		return rank[columns[i]] < rank[columns[j]]
	})
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.Rows) }

// Prices returns the price column as a dense slice.
func (s *Series) Prices() []float64 {
	out := make([]float64, len(s.Rows))
	for i := range s.Rows {
		out[i] = s.Rows[i].Price
	}
	return out
}

// Timestamps returns the timestamp column in milliseconds.
func (s *Series) Timestamps() []int64 {
	out := make([]int64, len(s.Rows))
	for i := range s.Rows {
		out[i] = s.Rows[i].TimestampMs
	}
	return out
}

// HasColumn reports whether the raw input carried the named column.
func (s *Series) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}
