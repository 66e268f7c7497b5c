package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

// UpbitWSURL is Upbit's streaming endpoint. Subscriptions are sent as a
// JSON array after connecting.
const UpbitWSURL = "wss://api.upbit.com/websocket/v1"

// UpbitNormalizer parses Upbit ticker frames.
type UpbitNormalizer struct{}

func (UpbitNormalizer) Exchange() string { return "upbit" }

// upbitTicker is the subset of Upbit's ticker payload we consume.
type upbitTicker struct {
	Type             string  `json:"type"`
	Code             string  `json:"code"` // e.g. "KRW-BTC"
	TradePrice       float64 `json:"trade_price"`
	AccTradeVolume   float64 `json:"acc_trade_volume_24h"`
	SignedChangeRate float64 `json:"signed_change_rate"` // fraction, signed
	Timestamp        int64   `json:"timestamp"`          // ms
}

// Normalize converts one ticker frame into a canonical price event.
func (n UpbitNormalizer) Normalize(raw []byte) ([]model.PriceEvent, error) {
	var t upbitTicker
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("upbit: decode frame: %w", err)
	}
	if t.Type != "ticker" {
		return nil, nil // status/ack frame
	}

	return []model.PriceEvent{{
		Exchange:  n.Exchange(),
		Symbol:    t.Code,
		Price:     decimal.NewFromFloat(t.TradePrice),
		Volume:    decimal.NewFromFloat(t.AccTradeVolume),
		Change24h: decimal.NewFromFloat(t.SignedChangeRate * 100),
		Timestamp: time.UnixMilli(t.Timestamp),
	}}, nil
}

// upbitSubscribe sends the ticker subscription for the given codes.
func upbitSubscribe(codes []string) func(*websocket.Conn) error {
	return func(conn *websocket.Conn) error {
		msg := []any{
			map[string]string{"ticket": uuid.New().String()},
			map[string]any{"type": "ticker", "codes": codes},
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}
}

// NewUpbitAdapter creates the Upbit feed adapter for the given market codes
// (e.g. "KRW-BTC").
func NewUpbitAdapter(url string, codes []string, emit EmitFunc) *WSAdapter {
	if url == "" {
		url = UpbitWSURL
	}
	return NewWSAdapter(url, UpbitNormalizer{}, upbitSubscribe(codes), emit)
}
