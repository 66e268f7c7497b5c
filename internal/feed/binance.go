package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

// BinanceWSURL is the combined-stream endpoint. The symbol subscription is
// encoded in the URL, so no subscribe message is needed after connect.
const BinanceWSURL = "wss://stream.binance.com:9443/stream"

// BinanceNormalizer parses Binance miniTicker frames.
type BinanceNormalizer struct{}

func (BinanceNormalizer) Exchange() string { return "binance" }

// binanceFrame is a combined-stream envelope around one miniTicker payload.
type binanceFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string `json:"e"`
		EventTime int64  `json:"E"` // ms
		Symbol    string `json:"s"`
		Close     string `json:"c"`
		Open      string `json:"o"`
		Volume    string `json:"v"`
	} `json:"data"`
}

// Normalize converts one miniTicker frame into a canonical price event.
// 24h change is derived from the open/close pair since miniTicker does not
// carry a percent field.
func (n BinanceNormalizer) Normalize(raw []byte) ([]model.PriceEvent, error) {
	var frame binanceFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("binance: decode frame: %w", err)
	}
	if frame.Data.EventType != "24hrMiniTicker" {
		return nil, nil // subscription ack or other control frame
	}

	price, err := decimal.NewFromString(frame.Data.Close)
	if err != nil {
		return nil, fmt.Errorf("binance: bad close price %q: %w", frame.Data.Close, err)
	}
	open, err := decimal.NewFromString(frame.Data.Open)
	if err != nil {
		return nil, fmt.Errorf("binance: bad open price %q: %w", frame.Data.Open, err)
	}
	volume, err := decimal.NewFromString(frame.Data.Volume)
	if err != nil {
		return nil, fmt.Errorf("binance: bad volume %q: %w", frame.Data.Volume, err)
	}

	change := decimal.Zero
	if open.IsPositive() {
		change = price.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
	}

	return []model.PriceEvent{{
		Exchange:  n.Exchange(),
		Symbol:    frame.Data.Symbol,
		Price:     price,
		Volume:    volume,
		Change24h: change,
		Timestamp: time.UnixMilli(frame.Data.EventTime),
	}}, nil
}

// BinanceStreamURL builds the combined miniTicker stream URL for symbols.
func BinanceStreamURL(base string, symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@miniTicker")
	}
	return base + "?streams=" + strings.Join(streams, "/")
}

// NewBinanceAdapter creates the Binance feed adapter for the given symbols.
func NewBinanceAdapter(base string, symbols []string, emit EmitFunc) *WSAdapter {
	if base == "" {
		base = BinanceWSURL
	}
	return NewWSAdapter(BinanceStreamURL(base, symbols), BinanceNormalizer{}, nil, emit)
}
