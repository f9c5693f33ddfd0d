package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestParseTickMessage(t *testing.T) {
	ticks, err := parseTickMessage([]byte(`{"bitcoin":"50123.45","ethereum":"3001.2"}`), 1700000000000)
	if err != nil {
		t.Fatalf("parseTickMessage failed: %v", err)
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i].AssetID < ticks[j].AssetID })

	if len(ticks) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(ticks))
	}
	if ticks[0].AssetID != "bitcoin" || ticks[0].PriceUSD != "50123.45" {
		t.Errorf("Unexpected tick: %+v", ticks[0])
	}
	if ticks[0].TimestampMs != 1700000000000 {
		t.Errorf("Unexpected timestamp: %d", ticks[0].TimestampMs)
	}
}

func TestParseTickMessage_Malformed(t *testing.T) {
	if _, err := parseTickMessage([]byte(`[1,2,3]`), 0); err == nil {
		t.Error("Expected error for non-object message")
	}
}

func TestTick_Row(t *testing.T) {
	tick := Tick{AssetID: "bitcoin", PriceUSD: "50123.45", TimestampMs: 1700000000000}
	row := tick.Row()

	if row["timestamp"] != "1700000000000" {
		t.Errorf("Unexpected timestamp cell: %q", row["timestamp"])
	}
	if row["price_usd"] != "50123.45" {
		t.Errorf("Unexpected price cell: %q", row["price_usd"])
	}
}

func TestWSPriceSource_Stream(t *testing.T) {
	var gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"bitcoin":"50000.1"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"bitcoin":"50000.2"}`))

		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := NewWSPriceSource(wsURL, []string{"bitcoin"}, nil).
		WithClock(fixedClock(1700000000000))

	ticks, err := source.Stream(ctx)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var received []Tick
	timeout := time.After(5 * time.Second)
	for len(received) < 2 {
		select {
		case tick, ok := <-ticks:
			if !ok {
				t.Fatal("Tick channel closed before both ticks arrived")
			}
			received = append(received, tick)
		case <-timeout:
			t.Fatal("Timed out waiting for ticks")
		}
	}

	if gotQuery != "assets=bitcoin" {
		t.Errorf("Unexpected subscribe query: %q", gotQuery)
	}
	if received[0].PriceUSD != "50000.1" || received[1].PriceUSD != "50000.2" {
		t.Errorf("Unexpected tick order: %+v", received)
	}

	cancel()
	source.Wait()
}

func TestWSPriceSource_NoAssets(t *testing.T) {
	source := NewWSPriceSource("ws://example.invalid", nil, nil)
	if _, err := source.Stream(context.Background()); err == nil {
		t.Error("Expected error for empty asset list")
	}
}
