package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"crypto-vol-lab/internal/domain"
)

// WSConfig configures the live price stream.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout bounds a single read; a quiet connection is re-dialed.
	ReadTimeout time.Duration
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
	// Buffer is the tick channel capacity.
	Buffer int
}

// DefaultWSConfig returns default stream configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		Buffer:            256,
	}
}

// Tick is a single live price update.
type Tick struct {
	AssetID     string
	PriceUSD    string // raw string; the normalizer owns parsing
	TimestampMs int64
}

// Row converts a tick into a raw row for normalization.
func (t Tick) Row() domain.RawRow {
	return domain.RawRow{
		domain.ColumnTimestamp: strconv.FormatInt(t.TimestampMs, 10),
		domain.ColumnPrice:     t.PriceUSD,
	}
}

// WSPriceSource streams live prices from a CoinCap-style websocket.
// Endpoint shape: {base}/prices?assets=bitcoin,ethereum with messages
// of the form {"bitcoin":"50123.45"}.
type WSPriceSource struct {
	endpoint string
	assets   []string
	config   WSConfig
	clock    func() time.Time
	log      zerolog.Logger

	wg sync.WaitGroup
}

// NewWSPriceSource creates a live price source for the given assets.
func NewWSPriceSource(endpoint string, assets []string, config *WSConfig) *WSPriceSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	return &WSPriceSource{
		endpoint: endpoint,
		assets:   assets,
		config:   cfg,
		clock:    time.Now,
		log:      zerolog.Nop(),
	}
}

// WithClock replaces the tick timestamp source. Tests use this.
func (s *WSPriceSource) WithClock(clock func() time.Time) *WSPriceSource {
	s.clock = clock
	return s
}

// WithLogger attaches a logger to the stream loop.
func (s *WSPriceSource) WithLogger(log zerolog.Logger) *WSPriceSource {
	s.log = log
	return s
}

// Stream connects and emits ticks until ctx is cancelled.
// The connection is re-dialed with exponential backoff on failure;
// the channel is closed only when ctx ends.
func (s *WSPriceSource) Stream(ctx context.Context) (<-chan Tick, error) {
	if len(s.assets) == 0 {
		return nil, fmt.Errorf("no assets to stream")
	}

	out := make(chan Tick, s.config.Buffer)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		s.run(ctx, out)
	}()

	return out, nil
}

// Wait blocks until the stream loop has exited.
func (s *WSPriceSource) Wait() {
	s.wg.Wait()
}

func (s *WSPriceSource) run(ctx context.Context, out chan<- Tick) {
	delay := s.config.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dial(ctx)
		if err != nil {
			s.log.Warn().Err(err).Dur("retry_in", delay).Msg("websocket dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			continue
		}

		s.log.Info().Str("endpoint", s.endpoint).Msg("websocket connected")
		delay = s.config.ReconnectDelay

		err = s.readLoop(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.log.Warn().Err(err).Msg("websocket read loop ended, reconnecting")
	}
}

func (s *WSPriceSource) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.config.HandshakeTimeout,
	}

	endpoint := s.endpoint + "?assets=" + strings.Join(s.assets, ",")
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func (s *WSPriceSource) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- Tick) error {
	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(s.clock().Add(s.config.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		ticks, err := parseTickMessage(message, s.clock().UnixMilli())
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping malformed tick message")
			continue
		}

		for _, tick := range ticks {
			select {
			case out <- tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// parseTickMessage decodes a price update into ticks, one per asset.
func parseTickMessage(message []byte, timestampMs int64) ([]Tick, error) {
	var prices map[string]string
	if err := json.Unmarshal(message, &prices); err != nil {
		return nil, fmt.Errorf("unmarshal tick message: %w", err)
	}

	ticks := make([]Tick, 0, len(prices))
	for asset, price := range prices {
		ticks = append(ticks, Tick{
			AssetID:     asset,
			PriceUSD:    price,
			TimestampMs: timestampMs,
		})
	}
	return ticks, nil
}
