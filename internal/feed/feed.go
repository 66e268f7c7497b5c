// Package feed maintains one persistent connection per exchange and
// normalizes vendor-specific ticks into canonical price events. On
// connection loss an adapter reconnects with capped exponential backoff
// and resubscribes to the same symbol set; missed ticks are not buffered —
// only the latest state matters downstream.
package feed

import (
	"context"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/coinarena/predict-engine/internal/model"
)

// Normalizer converts one vendor-specific frame into canonical price
// events. Implemented once per exchange; the rest of the pipeline is
// exchange-agnostic. Frames that are not ticks (acks, heartbeats) return
// an empty slice and no error.
type Normalizer interface {
	Exchange() string
	Normalize(raw []byte) ([]model.PriceEvent, error)
}

// EmitFunc receives each normalized event. It must not block; the price
// cache update it typically points at is a bounded map write with
// drop-on-full fan-out behind it.
type EmitFunc func(model.PriceEvent)

// WSAdapter runs one exchange's WebSocket connection.
type WSAdapter struct {
	url       string
	subscribe func(*websocket.Conn) error // sent after each (re)connect; nil when the URL carries the subscription
	norm      Normalizer
	emit      EmitFunc
	backoff   *Backoff
}

// NewWSAdapter creates an adapter for one exchange endpoint. subscribe may
// be nil when the subscription is encoded in the URL.
func NewWSAdapter(url string, norm Normalizer, subscribe func(*websocket.Conn) error, emit EmitFunc) *WSAdapter {
	return &WSAdapter{
		url:       url,
		subscribe: subscribe,
		norm:      norm,
		emit:      emit,
		backoff:   NewBackoff(time.Second, time.Minute),
	}
}

// Run maintains the connection until ctx is cancelled. Connection errors
// are contained here: logged, backed off, retried. They never surface to
// users.
func (a *WSAdapter) Run(ctx context.Context) {
	for {
		if err := a.runOnce(ctx); err != nil && ctx.Err() == nil {
			delay := a.backoff.Next()
			slog.Warn("feed disconnected, reconnecting",
				"exchange", a.norm.Exchange(), "delay", delay, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (a *WSAdapter) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if a.subscribe != nil {
		if err := a.subscribe(conn); err != nil {
			return err
		}
	}

	a.backoff.Reset()
	slog.Info("feed connected", "exchange", a.norm.Exchange())

	// Close the socket when ctx is cancelled so ReadMessage unblocks.
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
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		events, err := a.norm.Normalize(raw)
		if err != nil {
			// A single malformed tick is dropped, not fatal.
			slog.Debug("tick parse failed", "exchange", a.norm.Exchange(), "err", err)
			continue
		}
		for _, ev := range events {
			a.emit(ev)
		}
	}
}
