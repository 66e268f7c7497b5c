package broadcast

import (
	"testing"
	"time"

	"github.com/coinarena/predict-engine/internal/model"
	"github.com/shopspring/decimal"
)

func TestBroadcaster_PublishSubscribe(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	b.Publish(PriceEvent(model.PricePoint{Exchange: "binance", Symbol: "BTCUSDT"}))

	select {
	case ev := <-sub.C():
		if ev.Type != TypePriceUpdate {
			t.Errorf("expected price-update, got %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
	}
}

func TestBroadcaster_FilterByUser(t *testing.T) {
	b := New(4)
	alice := b.Subscribe(ForUser("alice"))
	bob := b.Subscribe(ForUser("bob"))
	defer b.Unsubscribe(alice)
	defer b.Unsubscribe(bob)

	b.Publish(ResultEvent(model.PredictionResult{UserID: "alice", Outcome: model.OutcomeWin}))
	b.Publish(PriceEvent(model.PricePoint{Exchange: "binance", Symbol: "BTCUSDT"}))

	// Alice sees her result and the public event.
	if n := drain(alice); n != 2 {
		t.Errorf("alice: expected 2 events, got %d", n)
	}
	// Bob sees only the public event.
	if n := drain(bob); n != 1 {
		t.Errorf("bob: expected 1 event, got %d", n)
	}
}

func TestBroadcaster_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := New(2)
	var dropped int
	b.OnDrop(func() { dropped++ })

	sub := b.Subscribe(nil) // never drained
	defer b.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(PriceEvent(model.PricePoint{Price: decimal.NewFromInt(int64(i))}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	if dropped != 8 {
		t.Errorf("expected 8 dropped events, got %d", dropped)
	}
	// Buffered events keep per-subscriber order.
	first := <-sub.C()
	if p := first.Data.(model.PricePoint); !p.Price.Equal(decimal.NewFromInt(0)) {
		t.Errorf("expected first buffered event, got price %s", p.Price)
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(nil)
	b.Unsubscribe(sub)

	if _, ok := <-sub.C(); ok {
		t.Error("expected closed channel after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(PriceEvent(model.PricePoint{}))
}

func drain(sub *Subscription) int {
	n := 0
	for {
		select {
		case <-sub.C():
			n++
		default:
			return n
		}
	}
}
