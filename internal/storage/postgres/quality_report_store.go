package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/storage"
)

// QualityReportStore implements storage.QualityReportStore using PostgreSQL.
// The full report is stored as JSONB alongside indexed key columns.
type QualityReportStore struct {
	pool *Pool
}

// NewQualityReportStore creates a new QualityReportStore.
func NewQualityReportStore(pool *Pool) *QualityReportStore {
	return &QualityReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.QualityReportStore = (*QualityReportStore)(nil)

// Insert adds a new report. Returns ErrDuplicateKey if (asset_id, generated_at_ms) exists.
func (s *QualityReportStore) Insert(ctx context.Context, report *domain.QualityReport) error {
	if report == nil || report.AssetID == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal quality report: %w", err)
	}

	query := `
		INSERT INTO quality_reports (
			asset_id, generated_at_ms, passed, row_count, report
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query,
		report.AssetID,
		report.GeneratedAtMs,
		report.Passed,
		report.RowCount,
		payload,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert quality report: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent report for an asset. Returns ErrNotFound if none exists.
func (s *QualityReportStore) GetLatest(ctx context.Context, assetID string) (*domain.QualityReport, error) {
	query := `
		SELECT report FROM quality_reports
		WHERE asset_id = $1
		ORDER BY generated_at_ms DESC
		LIMIT 1
	`

	var payload []byte
	err := s.pool.QueryRow(ctx, query, assetID).Scan(&payload)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest quality report: %w", err)
	}

	return unmarshalReport(payload)
}

// GetByAssetID retrieves all reports for an asset, ordered by generation time ASC.
func (s *QualityReportStore) GetByAssetID(ctx context.Context, assetID string) ([]*domain.QualityReport, error) {
	query := `
		SELECT report FROM quality_reports
		WHERE asset_id = $1
		ORDER BY generated_at_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("get quality reports by asset id: %w", err)
	}
	defer rows.Close()

	var reports []*domain.QualityReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan quality report row: %w", err)
		}
		report, err := unmarshalReport(payload)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quality report rows: %w", err)
	}

	return reports, nil
}

func unmarshalReport(payload []byte) (*domain.QualityReport, error) {
	var report domain.QualityReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("unmarshal quality report: %w", err)
	}
	return &report, nil
}
