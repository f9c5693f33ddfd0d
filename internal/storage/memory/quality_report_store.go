package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/storage"
)

// QualityReportStore is an in-memory implementation of storage.QualityReportStore.
type QualityReportStore struct {
	mu   sync.RWMutex
	data map[string]*domain.QualityReport // keyed by (asset_id, generated_at_ms)
}

// NewQualityReportStore creates a new in-memory quality report store.
func NewQualityReportStore() *QualityReportStore {
	return &QualityReportStore{
		data: make(map[string]*domain.QualityReport),
	}
}

// Insert adds a new report. Returns ErrDuplicateKey if the key exists.
func (s *QualityReportStore) Insert(_ context.Context, report *domain.QualityReport) error {
	if report == nil || report.AssetID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := observationKey(report.AssetID, report.GeneratedAtMs)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	reportCopy := copyReport(report)
	s.data[key] = reportCopy
	return nil
}

// GetLatest retrieves the most recent report for an asset.
func (s *QualityReportStore) GetLatest(_ context.Context, assetID string) (*domain.QualityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.QualityReport
	for _, r := range s.data {
		if r.AssetID != assetID {
			continue
		}
		if latest == nil || r.GeneratedAtMs > latest.GeneratedAtMs {
			latest = r
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return copyReport(latest), nil
}

// GetByAssetID retrieves all reports for an asset, ordered by generation time ASC.
func (s *QualityReportStore) GetByAssetID(_ context.Context, assetID string) ([]*domain.QualityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.QualityReport
	for _, r := range s.data {
		if r.AssetID == assetID {
			result = append(result, copyReport(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].GeneratedAtMs < result[j].GeneratedAtMs
	})

	return result, nil
}

// copyReport deep-copies a report so callers cannot mutate stored state.
func copyReport(r *domain.QualityReport) *domain.QualityReport {
	out := *r
	out.Columns = append([]string(nil), r.Columns...)
	out.Checks = make([]domain.CheckResult, len(r.Checks))
	for i, c := range r.Checks {
		cc := c
		cc.Violations = append([]string(nil), c.Violations...)
		if c.Metrics != nil {
			cc.Metrics = make(map[string]float64, len(c.Metrics))
			for k, v := range c.Metrics {
				cc.Metrics[k] = v
			}
		}
		out.Checks[i] = cc
	}
	return &out
}

var _ storage.QualityReportStore = (*QualityReportStore)(nil)
