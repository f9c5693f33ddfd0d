package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"crypto-vol-lab/internal/domain"
)

func fastRESTOptions() []RESTOption {
	return []RESTOption{
		WithRetryDelay(time.Millisecond),
		WithRateLimit(10000),
	}
}

func TestRESTSource_Fetch(t *testing.T) {
	var gotPath, gotAuth, gotInterval, gotStart, gotEnd string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotInterval = r.URL.Query().Get("interval")
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"priceUsd":"50000.12","time":1700000000000},
			{"priceUsd":"50010.34","time":1700000300000}
		]}`))
	}))
	defer server.Close()

	source := NewRESTSource(server.URL, "test-key", fastRESTOptions()...)

	rows, err := source.Fetch(context.Background(), "bitcoin", 1700000000000, 1700000300000)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotPath != "/assets/bitcoin/history" {
		t.Errorf("Unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Unexpected Authorization header: %q", gotAuth)
	}
	if gotInterval != "m5" || gotStart != "1700000000000" || gotEnd != "1700000300000" {
		t.Errorf("Unexpected query: interval=%s start=%s end=%s", gotInterval, gotStart, gotEnd)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0][domain.ColumnTimestamp] != "1700000000000" {
		t.Errorf("Unexpected timestamp cell: %q", rows[0][domain.ColumnTimestamp])
	}
	if rows[1][domain.ColumnPrice] != "50010.34" {
		t.Errorf("Unexpected price cell: %q", rows[1][domain.ColumnPrice])
	}
}

func TestRESTSource_NoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	source := NewRESTSource(server.URL, "", fastRESTOptions()...)
	if _, err := source.Fetch(context.Background(), "bitcoin", 0, 1); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Expected no Authorization header, got %q", gotAuth)
	}
}

func TestRESTSource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":[{"priceUsd":"1.0","time":1000}]}`))
	}))
	defer server.Close()

	source := NewRESTSource(server.URL, "", fastRESTOptions()...)

	rows, err := source.Fetch(context.Background(), "bitcoin", 0, 2000)
	if err != nil {
		t.Fatalf("Fetch failed after retries: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(rows))
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestRESTSource_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	source := NewRESTSource(server.URL, "", fastRESTOptions()...)

	_, err := source.Fetch(context.Background(), "nope", 0, 1)
	if err == nil {
		t.Fatal("Expected error for 404")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly 1 attempt for client error, got %d", calls.Load())
	}
}

func TestRESTSource_ExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	opts := append(fastRESTOptions(), WithMaxRetries(2))
	source := NewRESTSource(server.URL, "", opts...)

	_, err := source.Fetch(context.Background(), "bitcoin", 0, 1)
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
}
