package clickhouse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/storage"
)

func TestFeatureRowStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeatureRowStore(conn)

	rows := []*domain.FeatureRow{
		{
			AssetID:     "bitcoin",
			TimestampMs: 1700000000000,
			Values:      []float64{0.01, 50000, 1.002},
			Target:      120.5,
			TargetNorm:  0.0024,
		},
		{
			AssetID:     "bitcoin",
			TimestampMs: 1700000300000,
			Values:      []float64{0.02, 50100, 1.003},
			Target:      121.0,
			TargetNorm:  0.0024,
		},
	}

	err := store.InsertBulk(ctx, rows)
	require.NoError(t, err)

	result, err := store.GetByAssetID(ctx, "bitcoin")
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, int64(1700000000000), result[0].TimestampMs)
	assert.Equal(t, []float64{0.01, 50000, 1.002}, result[0].Values)
	assert.InDelta(t, 120.5, result[0].Target, 0.0001)
	assert.InDelta(t, 0.0024, result[0].TargetNorm, 0.0001)
}

func TestFeatureRowStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeatureRowStore(conn)

	rows := []*domain.FeatureRow{
		{AssetID: "bitcoin", TimestampMs: 1700000000000, Values: []float64{1}},
	}

	require.NoError(t, store.InsertBulk(ctx, rows))

	err := store.InsertBulk(ctx, rows)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)
}

func TestFeatureRowStore_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeatureRowStore(conn)

	rows := []*domain.FeatureRow{
		{AssetID: "bitcoin", TimestampMs: 1700000000000, Values: []float64{1}},
		{AssetID: "bitcoin", TimestampMs: 1700000000000, Values: []float64{2}},
	}

	err := store.InsertBulk(ctx, rows)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)
}

func TestFeatureRowStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeatureRowStore(conn)

	rows := []*domain.FeatureRow{
		{AssetID: "bitcoin", TimestampMs: 1000, Values: []float64{1}},
		{AssetID: "bitcoin", TimestampMs: 2000, Values: []float64{2}},
		{AssetID: "bitcoin", TimestampMs: 3000, Values: []float64{3}},
		{AssetID: "ethereum", TimestampMs: 2000, Values: []float64{9}},
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	result, err := store.GetByTimeRange(ctx, "bitcoin", 2000, 3000)
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, int64(2000), result[0].TimestampMs)
	assert.Equal(t, int64(3000), result[1].TimestampMs)
}
