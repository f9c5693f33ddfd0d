package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Observation // keyed by (asset_id, timestamp_ms)
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data: make(map[string]*domain.Observation),
	}
}

// observationKey generates a unique key for an observation.
func observationKey(assetID string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", assetID, timestampMs)
}

// InsertBulk adds multiple observations. Fails entire batch on duplicate.
func (s *ObservationStore) InsertBulk(_ context.Context, observations []*domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(observations))

	for _, o := range observations {
		if o == nil || o.AssetID == "" {
			return storage.ErrInvalidInput
		}
		key := observationKey(o.AssetID, o.TimestampMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, o := range observations {
		key := observationKey(o.AssetID, o.TimestampMs)
		obsCopy := *o
		s.data[key] = &obsCopy
	}

	return nil
}

// GetByAssetID retrieves all observations for an asset, ordered by timestamp ASC.
func (s *ObservationStore) GetByAssetID(_ context.Context, assetID string) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Observation
	for _, o := range s.data {
		if o.AssetID == assetID {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByTimeRange retrieves observations for an asset within [start, end] (inclusive).
func (s *ObservationStore) GetByTimeRange(_ context.Context, assetID string, start, end int64) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Observation
	for _, o := range s.data {
		if o.AssetID == assetID && o.TimestampMs >= start && o.TimestampMs <= end {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetLatestTimestamp returns the newest stored timestamp for an asset.
func (s *ObservationStore) GetLatestTimestamp(_ context.Context, assetID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	found := false
	for _, o := range s.data {
		if o.AssetID != assetID {
			continue
		}
		if !found || o.TimestampMs > latest {
			latest = o.TimestampMs
			found = true
		}
	}

	if !found {
		return 0, storage.ErrNotFound
	}
	return latest, nil
}

var _ storage.ObservationStore = (*ObservationStore)(nil)
