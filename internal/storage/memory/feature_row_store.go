package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/storage"
)

// FeatureRowStore is an in-memory implementation of storage.FeatureRowStore.
type FeatureRowStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FeatureRow // keyed by (asset_id, timestamp_ms)
}

// NewFeatureRowStore creates a new in-memory feature row store.
func NewFeatureRowStore() *FeatureRowStore {
	return &FeatureRowStore{
		data: make(map[string]*domain.FeatureRow),
	}
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *FeatureRowStore) InsertBulk(_ context.Context, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.AssetID == "" {
			return storage.ErrInvalidInput
		}
		key := observationKey(r.AssetID, r.TimestampMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		key := observationKey(r.AssetID, r.TimestampMs)
		s.data[key] = copyFeatureRow(r)
	}

	return nil
}

// GetByAssetID retrieves all rows for an asset, ordered by timestamp ASC.
func (s *FeatureRowStore) GetByAssetID(_ context.Context, assetID string) ([]*domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRow
	for _, r := range s.data {
		if r.AssetID == assetID {
			result = append(result, copyFeatureRow(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByTimeRange retrieves rows for an asset within [start, end] (inclusive).
func (s *FeatureRowStore) GetByTimeRange(_ context.Context, assetID string, start, end int64) ([]*domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRow
	for _, r := range s.data {
		if r.AssetID == assetID && r.TimestampMs >= start && r.TimestampMs <= end {
			result = append(result, copyFeatureRow(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

func copyFeatureRow(r *domain.FeatureRow) *domain.FeatureRow {
	out := *r
	out.Values = append([]float64(nil), r.Values...)
	return &out
}

var _ storage.FeatureRowStore = (*FeatureRowStore)(nil)
