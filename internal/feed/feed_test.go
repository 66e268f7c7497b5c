package feed

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// --- Binance normalization ---

func TestBinanceNormalize_MiniTicker(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1756700000000,"s":"BTCUSDT","c":"50500.00","o":"50000.00","h":"51000.00","l":"49500.00","v":"12345.6","q":"620000000"}}`)

	events, err := BinanceNormalizer{}.Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Exchange != "binance" || ev.Symbol != "BTCUSDT" {
		t.Errorf("bad identity: %s %s", ev.Exchange, ev.Symbol)
	}
	if !ev.Price.Equal(d(50500)) {
		t.Errorf("expected price 50500, got %s", ev.Price)
	}
	// (50500-50000)/50000 * 100 = 1%
	if !ev.Change24h.Equal(d(1)) {
		t.Errorf("expected change 1%%, got %s", ev.Change24h)
	}
	if ev.Timestamp != time.UnixMilli(1756700000000) {
		t.Errorf("bad timestamp: %v", ev.Timestamp)
	}
}

func TestBinanceNormalize_ControlFrameIgnored(t *testing.T) {
	events, err := BinanceNormalizer{}.Normalize([]byte(`{"result":null,"id":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("control frame should yield no events, got %d", len(events))
	}
}

func TestBinanceNormalize_BadPrice(t *testing.T) {
	raw := []byte(`{"data":{"e":"24hrMiniTicker","E":1,"s":"BTCUSDT","c":"not-a-number","o":"1","v":"1"}}`)
	if _, err := (BinanceNormalizer{}).Normalize(raw); err == nil {
		t.Error("expected error for malformed price")
	}
}

func TestBinanceStreamURL(t *testing.T) {
	url := BinanceStreamURL(BinanceWSURL, []string{"BTCUSDT", "ETHUSDT"})
	want := BinanceWSURL + "?streams=btcusdt@miniTicker/ethusdt@miniTicker"
	if url != want {
		t.Errorf("got %s, want %s", url, want)
	}
}

// --- Upbit normalization ---

func TestUpbitNormalize_Ticker(t *testing.T) {
	raw := []byte(`{"type":"ticker","code":"KRW-BTC","trade_price":68500000,"acc_trade_volume_24h":1234.5,"signed_change_rate":-0.0125,"timestamp":1756700000000}`)

	events, err := UpbitNormalizer{}.Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Exchange != "upbit" || ev.Symbol != "KRW-BTC" {
		t.Errorf("bad identity: %s %s", ev.Exchange, ev.Symbol)
	}
	if !ev.Price.Equal(d(68500000)) {
		t.Errorf("expected price 68500000, got %s", ev.Price)
	}
	if !ev.Change24h.Equal(d(-1.25)) {
		t.Errorf("expected change -1.25%%, got %s", ev.Change24h)
	}
}

func TestUpbitNormalize_StatusFrameIgnored(t *testing.T) {
	events, err := UpbitNormalizer{}.Normalize([]byte(`{"status":"UP"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("status frame should yield no events, got %d", len(events))
	}
}

// --- Backoff ---

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := NewBackoff(time.Second, 8*time.Second)

	for i := 0; i < 10; i++ {
		delay := b.Next()
		if delay > 8*time.Second {
			t.Fatalf("attempt %d: delay %v exceeds cap", i, delay)
		}
		if delay <= 0 {
			t.Fatalf("attempt %d: non-positive delay %v", i, delay)
		}
	}
}

func TestBackoff_ResetRestoresInitialDelay(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()

	// After reset the base is back to min, so delay <= min.
	if delay := b.Next(); delay > time.Second {
		t.Errorf("expected post-reset delay <= 1s, got %v", delay)
	}
}

func TestBackoff_JitterStaysWithinHalf(t *testing.T) {
	b := NewBackoff(4*time.Second, time.Minute)
	for i := 0; i < 50; i++ {
		b.Reset()
		delay := b.Next()
		if delay < 2*time.Second || delay > 4*time.Second {
			t.Fatalf("delay %v outside [2s, 4s]", delay)
		}
	}
}
