package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/normalization"
	"crypto-vol-lab/internal/storage"
)

// DefaultBackfill is how far back the first extraction reaches when the
// archive has no rows for the asset yet.
const DefaultBackfill = 30 * 24 * time.Hour

// Extractor pulls missing rows from a source, normalizes them and
// appends the resulting observations to the archive.
type Extractor struct {
	source   Source
	store    storage.ObservationStore
	backfill time.Duration
	clock    func() time.Time
	log      zerolog.Logger
}

// NewExtractor creates an extractor over a source and an observation store.
func NewExtractor(source Source, store storage.ObservationStore) *Extractor {
	return &Extractor{
		source:   source,
		store:    store,
		backfill: DefaultBackfill,
		clock:    time.Now,
		log:      zerolog.Nop(),
	}
}

// WithBackfill sets the initial extraction window for empty archives.
func (e *Extractor) WithBackfill(d time.Duration) *Extractor {
	e.backfill = d
	return e
}

// WithClock replaces the wall clock. Tests use this.
func (e *Extractor) WithClock(clock func() time.Time) *Extractor {
	e.clock = clock
	return e
}

// WithLogger attaches a logger.
func (e *Extractor) WithLogger(log zerolog.Logger) *Extractor {
	e.log = log
	return e
}

// ExtractResult summarizes one extraction run.
type ExtractResult struct {
	AssetID  string
	FromMs   int64
	ToMs     int64
	RawRows  int
	Inserted int
	Series   *domain.Series
}

// Run extracts rows newer than the latest archived observation.
// The window starts one millisecond past the stored tip so the
// inclusive source fetch cannot duplicate it.
func (e *Extractor) Run(ctx context.Context, assetID string) (*ExtractResult, error) {
	now := e.clock().UnixMilli()

	from, err := e.windowStart(ctx, assetID, now)
	if err != nil {
		return nil, err
	}

	rows, err := e.source.Fetch(ctx, assetID, from, now)
	if err != nil {
		return nil, fmt.Errorf("fetch rows for %s: %w", assetID, err)
	}

	series, err := normalization.Normalize(assetID, rows)
	if err != nil {
		return nil, fmt.Errorf("normalize rows for %s: %w", assetID, err)
	}

	observations := make([]*domain.Observation, len(series.Rows))
	for i := range series.Rows {
		observations[i] = &series.Rows[i]
	}

	if err := e.store.InsertBulk(ctx, observations); err != nil {
		return nil, fmt.Errorf("store observations for %s: %w", assetID, err)
	}

	e.log.Info().
		Str("asset_id", assetID).
		Int64("from_ms", from).
		Int64("to_ms", now).
		Int("raw_rows", len(rows)).
		Int("inserted", len(observations)).
		Int("duplicates", series.Stats.DuplicateRows).
		Int("timestamp_parse_errors", series.Stats.TimestampParseErrors).
		Msg("extraction complete")

	return &ExtractResult{
		AssetID:  assetID,
		FromMs:   from,
		ToMs:     now,
		RawRows:  len(rows),
		Inserted: len(observations),
		Series:   series,
	}, nil
}

func (e *Extractor) windowStart(ctx context.Context, assetID string, now int64) (int64, error) {
	latest, err := e.store.GetLatestTimestamp(ctx, assetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return now - e.backfill.Milliseconds(), nil
		}
		return 0, fmt.Errorf("latest timestamp for %s: %w", assetID, err)
	}
	return latest + 1, nil
}
