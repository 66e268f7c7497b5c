package predict

import (
	"context"
	"testing"
	"time"

	"github.com/coinarena/predict-engine/internal/model"
)

func TestMonitor_DeliversTicksToEngine(t *testing.T) {
	env := newTestEnv(t)
	env.seedPrice(t, "binance", "BTCUSDT", 50000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := openReq("alice", 100)
	req.Leverage = 100
	pos, err := env.engine.Open(ctx, req)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	mon := NewMonitor(env.engine, 16)
	go mon.Run(ctx)

	mon.OnPrice(model.PricePoint{
		Exchange: "binance", Symbol: "BTCUSDT", Price: d(49000), Timestamp: time.Now(),
	})

	deadline := time.After(2 * time.Second)
	for {
		if p, _ := env.store.GetPosition(ctx, pos.ID); p.Status == model.StatusLiquidated {
			return
		}
		select {
		case <-deadline:
			t.Fatal("monitor did not liquidate the position")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMonitor_FullQueueDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	mon := NewMonitor(env.engine, 1) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			mon.OnPrice(model.PricePoint{Exchange: "binance", Symbol: "BTCUSDT"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnPrice blocked on a full queue")
	}
}
