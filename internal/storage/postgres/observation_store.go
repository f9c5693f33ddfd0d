package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/storage"
)

// ObservationStore implements storage.ObservationStore using PostgreSQL.
type ObservationStore struct {
	pool *Pool
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(pool *Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBulk adds multiple observations atomically.
// Fails entire batch on duplicate (asset_id, timestamp_ms).
func (s *ObservationStore) InsertBulk(ctx context.Context, observations []*domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO observations (
			asset_id, timestamp_ms, price_usd, open, high, low, close, volume, volume_usd
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, o := range observations {
		if o == nil || o.AssetID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			o.AssetID,
			o.TimestampMs,
			o.Price,
			o.Open,
			o.High,
			o.Low,
			o.Close,
			o.Volume,
			o.VolumeUSD,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert observation in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByAssetID retrieves all observations for an asset, ordered by timestamp ASC.
func (s *ObservationStore) GetByAssetID(ctx context.Context, assetID string) ([]*domain.Observation, error) {
	query := `
		SELECT asset_id, timestamp_ms, price_usd, open, high, low, close, volume, volume_usd
		FROM observations
		WHERE asset_id = $1
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("get observations by asset id: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetByTimeRange retrieves observations for an asset within [start, end] (inclusive).
func (s *ObservationStore) GetByTimeRange(ctx context.Context, assetID string, start, end int64) ([]*domain.Observation, error) {
	query := `
		SELECT asset_id, timestamp_ms, price_usd, open, high, low, close, volume, volume_usd
		FROM observations
		WHERE asset_id = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, assetID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get observations by time range: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetLatestTimestamp returns the newest stored timestamp for an asset.
func (s *ObservationStore) GetLatestTimestamp(ctx context.Context, assetID string) (int64, error) {
	query := `
		SELECT timestamp_ms FROM observations
		WHERE asset_id = $1
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	var ts int64
	err := s.pool.QueryRow(ctx, query, assetID).Scan(&ts)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get latest observation timestamp: %w", err)
	}
	return ts, nil
}

// scanObservations scans multiple rows into a slice of Observation.
func scanObservations(rows pgx.Rows) ([]*domain.Observation, error) {
	var observations []*domain.Observation

	for rows.Next() {
		var o domain.Observation

		err := rows.Scan(
			&o.AssetID,
			&o.TimestampMs,
			&o.Price,
			&o.Open,
			&o.High,
			&o.Low,
			&o.Close,
			&o.Volume,
			&o.VolumeUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		observations = append(observations, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return observations, nil
}
