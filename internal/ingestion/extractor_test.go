package ingestion

import (
	"context"
	"testing"
	"time"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/storage/memory"
)

// stubSource records the requested window and returns canned rows.
type stubSource struct {
	rows     []domain.RawRow
	gotAsset string
	gotFrom  int64
	gotTo    int64
}

func (s *stubSource) Fetch(_ context.Context, assetID string, from, to int64) ([]domain.RawRow, error) {
	s.gotAsset = assetID
	s.gotFrom = from
	s.gotTo = to
	return s.rows, nil
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestExtractor_BackfillWindowOnEmptyArchive(t *testing.T) {
	now := int64(1700000000000)
	source := &stubSource{rows: []domain.RawRow{
		{"timestamp": "1699999700000", "price_usd": "50000"},
		{"timestamp": "1700000000000", "price_usd": "50010"},
	}}
	store := memory.NewObservationStore()

	extractor := NewExtractor(source, store).
		WithBackfill(24 * time.Hour).
		WithClock(fixedClock(now))

	result, err := extractor.Run(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if source.gotAsset != "bitcoin" {
		t.Errorf("Unexpected asset: %s", source.gotAsset)
	}
	if source.gotFrom != now-24*time.Hour.Milliseconds() {
		t.Errorf("Expected backfill window start %d, got %d", now-24*time.Hour.Milliseconds(), source.gotFrom)
	}
	if source.gotTo != now {
		t.Errorf("Expected window end %d, got %d", now, source.gotTo)
	}
	if result.Inserted != 2 {
		t.Errorf("Expected 2 inserted observations, got %d", result.Inserted)
	}

	stored, err := store.GetByAssetID(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("GetByAssetID failed: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("Expected 2 stored observations, got %d", len(stored))
	}
}

func TestExtractor_IncrementalWindowPastStoredTip(t *testing.T) {
	now := int64(1700000600000)
	store := memory.NewObservationStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.Observation{
		{AssetID: "bitcoin", TimestampMs: 1700000000000, Price: 50000},
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	source := &stubSource{rows: []domain.RawRow{
		{"timestamp": "1700000300000", "price_usd": "50010"},
	}}

	extractor := NewExtractor(source, store).WithClock(fixedClock(now))

	if _, err := extractor.Run(ctx, "bitcoin"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// One millisecond past the stored tip; no re-fetch of the tip row.
	if source.gotFrom != 1700000000001 {
		t.Errorf("Expected window start 1700000000001, got %d", source.gotFrom)
	}

	stored, _ := store.GetByAssetID(ctx, "bitcoin")
	if len(stored) != 2 {
		t.Errorf("Expected 2 stored observations, got %d", len(stored))
	}
}

func TestExtractor_NormalizesBeforeStoring(t *testing.T) {
	now := int64(1700000600000)
	source := &stubSource{rows: []domain.RawRow{
		// Unordered, one duplicate, one unparseable timestamp.
		{"timestamp": "1700000300000", "price_usd": "50010"},
		{"timestamp": "1700000000000", "price_usd": "50000"},
		{"timestamp": "1700000000000", "price_usd": "50000"},
		{"timestamp": "bogus", "price_usd": "1"},
	}}
	store := memory.NewObservationStore()

	extractor := NewExtractor(source, store).WithClock(fixedClock(now))

	result, err := extractor.Run(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Inserted != 2 {
		t.Errorf("Expected 2 inserted after dedup and drops, got %d", result.Inserted)
	}
	if result.Series.Stats.DuplicateRows != 1 {
		t.Errorf("Expected 1 duplicate counted, got %d", result.Series.Stats.DuplicateRows)
	}
	if result.Series.Stats.TimestampParseErrors != 1 {
		t.Errorf("Expected 1 parse error counted, got %d", result.Series.Stats.TimestampParseErrors)
	}

	stored, _ := store.GetByAssetID(context.Background(), "bitcoin")
	if len(stored) != 2 || stored[0].TimestampMs != 1700000000000 {
		t.Errorf("Stored observations wrong: %+v", stored)
	}
}
