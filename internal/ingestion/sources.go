package ingestion

import (
	"context"

	"crypto-vol-lab/internal/domain"
)

// Source provides raw price rows from an external origin.
// Rows may be unordered and unvalidated; normalization enforces
// ordering and drops defective rows downstream.
type Source interface {
	// Fetch returns raw rows for an asset within [from, to] milliseconds (inclusive).
	Fetch(ctx context.Context, assetID string, from, to int64) ([]domain.RawRow, error)
}
