package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"crypto-vol-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
	DefaultBackoffMult  = 2.0
	DefaultInterval     = "m5"
	DefaultRequestsPerS = 5
)

// RESTSource fetches historical price rows from a CoinCap-style HTTP API.
// Endpoint shape: GET {base}/assets/{id}/history?interval=m5&start=...&end=...
type RESTSource struct {
	baseURL     string
	apiKey      string
	interval    string
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// RESTOption configures RESTSource.
type RESTOption func(*RESTSource)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) RESTOption {
	return func(s *RESTSource) {
		s.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) RESTOption {
	return func(s *RESTSource) {
		s.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) RESTOption {
	return func(s *RESTSource) {
		s.retryDelay = d
	}
}

// WithInterval sets the candle interval requested from the API.
func WithInterval(interval string) RESTOption {
	return func(s *RESTSource) {
		s.interval = interval
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) RESTOption {
	return func(s *RESTSource) {
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) RESTOption {
	return func(s *RESTSource) {
		s.client = client
	}
}

// NewRESTSource creates a new REST history source.
// The API key is sent as a Bearer token when non-empty.
func NewRESTSource(baseURL, apiKey string, opts ...RESTOption) *RESTSource {
	s := &RESTSource{
		baseURL:     baseURL,
		apiKey:      apiKey,
		interval:    DefaultInterval,
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRequestsPerS), 1),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ Source = (*RESTSource)(nil)

// historyResponse is the raw API payload.
type historyResponse struct {
	Data []historyPoint `json:"data"`
}

// historyPoint keeps prices as strings; the normalizer owns parsing.
type historyPoint struct {
	PriceUSD string `json:"priceUsd"`
	Time     int64  `json:"time"`
}

// Fetch returns raw rows for an asset within [from, to] milliseconds.
func (s *RESTSource) Fetch(ctx context.Context, assetID string, from, to int64) ([]domain.RawRow, error) {
	endpoint, err := s.historyURL(assetID, from, to)
	if err != nil {
		return nil, err
	}

	var resp historyResponse
	if err := s.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", assetID, err)
	}

	rows := make([]domain.RawRow, 0, len(resp.Data))
	for _, p := range resp.Data {
		rows = append(rows, domain.RawRow{
			domain.ColumnTimestamp: strconv.FormatInt(p.Time, 10),
			domain.ColumnPrice:     p.PriceUSD,
		})
	}
	return rows, nil
}

func (s *RESTSource) historyURL(assetID string, from, to int64) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u = u.JoinPath("assets", assetID, "history")

	q := u.Query()
	q.Set("interval", s.interval)
	q.Set("start", strconv.FormatInt(from, 10))
	q.Set("end", strconv.FormatInt(to, 10))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// get performs a rate-limited GET with retries and exponential backoff.
// Client errors other than 429 are not retried.
func (s *RESTSource) get(ctx context.Context, endpoint string, result interface{}) error {
	delay := s.retryDelay
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * s.backoffMult)
			if delay > s.maxDelay {
				delay = s.maxDelay
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		if err := json.Unmarshal(body, result); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
