package clickhouse

import (
	"context"
	"fmt"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/storage"
)

// FeatureRowStore implements storage.FeatureRowStore using ClickHouse.
// Feature values are stored as an array in schema order.
type FeatureRowStore struct {
	conn *Conn
}

// NewFeatureRowStore creates a new FeatureRowStore.
func NewFeatureRowStore(conn *Conn) *FeatureRowStore {
	return &FeatureRowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureRowStore = (*FeatureRowStore)(nil)

// InsertBulk adds multiple rows. Fails entire batch on duplicate (asset_id, timestamp_ms).
func (s *FeatureRowStore) InsertBulk(ctx context.Context, featureRows []*domain.FeatureRow) error {
	if len(featureRows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		assetID     string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, r := range featureRows {
		if r == nil || r.AssetID == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.AssetID, r.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, r := range featureRows {
		exists, err := s.exists(ctx, r.AssetID, r.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO feature_rows (
			asset_id, timestamp_ms, features, target, target_norm
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range featureRows {
		err = batch.Append(
			r.AssetID, uint64(r.TimestampMs), r.Values, r.Target, r.TargetNorm,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAssetID retrieves all rows for an asset, ordered by timestamp ASC.
func (s *FeatureRowStore) GetByAssetID(ctx context.Context, assetID string) ([]*domain.FeatureRow, error) {
	query := `
		SELECT asset_id, timestamp_ms, features, target, target_norm
		FROM feature_rows
		WHERE asset_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("query by asset id: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// GetByTimeRange retrieves rows for an asset within [start, end] (inclusive).
func (s *FeatureRowStore) GetByTimeRange(ctx context.Context, assetID string, start, end int64) ([]*domain.FeatureRow, error) {
	query := `
		SELECT asset_id, timestamp_ms, features, target, target_norm
		FROM feature_rows
		WHERE asset_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, assetID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// exists checks if a row with the given key exists.
func (s *FeatureRowStore) exists(ctx context.Context, assetID string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM feature_rows
		WHERE asset_id = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, assetID, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanFeatureRows scans multiple rows.
func scanFeatureRows(rows chRows) ([]*domain.FeatureRow, error) {
	var result []*domain.FeatureRow

	for rows.Next() {
		var r domain.FeatureRow
		var timestampMs uint64

		err := rows.Scan(
			&r.AssetID, &timestampMs, &r.Values, &r.Target, &r.TargetNorm,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}

		r.TimestampMs = int64(timestampMs)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}

	return result, nil
}
