package storage

import (
	"context"

	"crypto-vol-lab/internal/domain"
)

// ObservationStore provides access to the raw observation archive.
type ObservationStore interface {
	// InsertBulk adds multiple observations atomically.
	// Fails entire batch on duplicate (asset_id, timestamp_ms).
	InsertBulk(ctx context.Context, observations []*domain.Observation) error

	// GetByAssetID retrieves all observations for an asset, ordered by timestamp ASC.
	GetByAssetID(ctx context.Context, assetID string) ([]*domain.Observation, error)

	// GetByTimeRange retrieves observations for an asset within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, assetID string, start, end int64) ([]*domain.Observation, error)

	// GetLatestTimestamp returns the newest stored timestamp for an asset.
	// Returns ErrNotFound when the asset has no observations.
	GetLatestTimestamp(ctx context.Context, assetID string) (int64, error)
}

// QualityReportStore provides access to the quality report audit trail.
type QualityReportStore interface {
	// Insert adds a new report. Returns ErrDuplicateKey if (asset_id, generated_at_ms) exists.
	Insert(ctx context.Context, report *domain.QualityReport) error

	// GetLatest retrieves the most recent report for an asset. Returns ErrNotFound if none exists.
	GetLatest(ctx context.Context, assetID string) (*domain.QualityReport, error)

	// GetByAssetID retrieves all reports for an asset, ordered by generation time ASC.
	GetByAssetID(ctx context.Context, assetID string) ([]*domain.QualityReport, error)
}

// FeatureRowStore provides access to assembled feature rows.
type FeatureRowStore interface {
	// InsertBulk adds multiple rows. Fails entire batch on duplicate (asset_id, timestamp_ms).
	InsertBulk(ctx context.Context, rows []*domain.FeatureRow) error

	// GetByAssetID retrieves all rows for an asset, ordered by timestamp ASC.
	GetByAssetID(ctx context.Context, assetID string) ([]*domain.FeatureRow, error)

	// GetByTimeRange retrieves rows for an asset within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, assetID string, start, end int64) ([]*domain.FeatureRow, error)
}
