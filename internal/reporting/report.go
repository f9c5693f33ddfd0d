package reporting

import (
	"time"

	"crypto-vol-lab/internal/domain"
)

// RunReport summarizes one pipeline run for an asset.
type RunReport struct {
	GeneratedAt time.Time
	AssetID     string

	// Quality is the latest gate report for the asset.
	Quality *domain.QualityReport

	// Dataset describes the assembled feature rows, zero-valued when
	// the gate halted the run before assembly.
	Dataset DatasetSummary
}

// DatasetSummary describes stored feature rows.
type DatasetSummary struct {
	Rows           int
	Features       int
	TimeRangeStart int64 // Unix ms
	TimeRangeEnd   int64 // Unix ms
}
