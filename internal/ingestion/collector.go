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

// DefaultFlushInterval is how often buffered ticks are normalized and
// written to the archive.
const DefaultFlushInterval = 1 * time.Minute

// Collector consumes a live tick stream, buffers rows per asset, and
// periodically normalizes and appends them to the observation archive.
type Collector struct {
	source *WSPriceSource
	store  storage.ObservationStore

	flushInterval time.Duration
	log           zerolog.Logger
}

// CollectStats counts work done across the lifetime of one Collect call.
type CollectStats struct {
	Ticks    int
	Inserted int
	Flushes  int
}

// NewCollector creates a collector over a live source and the archive.
func NewCollector(source *WSPriceSource, store storage.ObservationStore) *Collector {
	return &Collector{
		source:        source,
		store:         store,
		flushInterval: DefaultFlushInterval,
		log:           zerolog.Nop(),
	}
}

// WithFlushInterval sets how often buffered ticks are persisted.
func (c *Collector) WithFlushInterval(d time.Duration) *Collector {
	c.flushInterval = d
	return c
}

// WithLogger attaches a logger.
func (c *Collector) WithLogger(log zerolog.Logger) *Collector {
	c.log = log
	return c
}

// Collect streams ticks until ctx is cancelled, flushing buffered rows
// every flush interval and once more on shutdown. Duplicate-key errors
// on a flush are logged and the batch dropped; the stream continues.
func (c *Collector) Collect(ctx context.Context) (*CollectStats, error) {
	ticks, err := c.source.Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	stats := &CollectStats{}
	buffers := map[string][]domain.RawRow{}

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case tick, ok := <-ticks:
			if !ok {
				c.flushAll(ctx, buffers, stats)
				c.source.Wait()
				return stats, nil
			}
			stats.Ticks++
			buffers[tick.AssetID] = append(buffers[tick.AssetID], tick.Row())
		case <-ticker.C:
			c.flushAll(ctx, buffers, stats)
		case <-ctx.Done():
			// Drain whatever the stream already emitted, then flush.
			for tick := range ticks {
				stats.Ticks++
				buffers[tick.AssetID] = append(buffers[tick.AssetID], tick.Row())
			}
			c.flushAll(context.WithoutCancel(ctx), buffers, stats)
			c.source.Wait()
			return stats, nil
		}
	}
}

func (c *Collector) flushAll(ctx context.Context, buffers map[string][]domain.RawRow, stats *CollectStats) {
	for assetID, rows := range buffers {
		if len(rows) == 0 {
			continue
		}
		inserted, err := c.flush(ctx, assetID, rows)
		if err != nil {
			c.log.Error().Err(err).Str("asset_id", assetID).Int("rows", len(rows)).Msg("flush failed")
		} else {
			stats.Inserted += inserted
			stats.Flushes++
		}
		delete(buffers, assetID)
	}
}

func (c *Collector) flush(ctx context.Context, assetID string, rows []domain.RawRow) (int, error) {
	series, err := normalization.Normalize(assetID, rows)
	if err != nil {
		return 0, fmt.Errorf("normalize: %w", err)
	}
	if series.Len() == 0 {
		return 0, nil
	}

	observations := make([]*domain.Observation, len(series.Rows))
	for i := range series.Rows {
		observations[i] = &series.Rows[i]
	}

	if err := c.store.InsertBulk(ctx, observations); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			c.log.Warn().Str("asset_id", assetID).Msg("dropping batch overlapping the archive")
			return 0, nil
		}
		return 0, fmt.Errorf("store observations: %w", err)
	}

	c.log.Debug().
		Str("asset_id", assetID).
		Int("ticks", len(rows)).
		Int("inserted", len(observations)).
		Msg("flushed tick batch")
	return len(observations), nil
}
