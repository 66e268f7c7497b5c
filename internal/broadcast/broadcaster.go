// Package broadcast fans canonical market and result events out to
// subscribers. Delivery is best-effort: a slow subscriber loses events
// instead of applying backpressure to publishers. Per-subscriber ordering
// is preserved; there is no ordering guarantee across subscribers.
package broadcast

import (
	"sync"

	"github.com/coinarena/predict-engine/internal/model"
)

// Event types pushed to subscribers.
const (
	TypePriceUpdate   = "price-update"
	TypeRateUpdate    = "exchange-rate-update"
	TypePredictResult = "predict-result"
)

// Event is one message on the bus. UserID is set only for events addressed
// to a single user (prediction results); empty means public.
type Event struct {
	Type   string `json:"type"`
	UserID string `json:"user_id,omitempty"`
	Data   any    `json:"data"`
}

// PriceEvent wraps a price point as a bus event.
func PriceEvent(p model.PricePoint) Event {
	return Event{Type: TypePriceUpdate, Data: p}
}

// RateEvent wraps an exchange rate as a bus event.
func RateEvent(r model.ExchangeRate) Event {
	return Event{Type: TypeRateUpdate, Data: r}
}

// ResultEvent wraps a prediction result as a bus event addressed to the
// owning user.
func ResultEvent(r model.PredictionResult) Event {
	return Event{Type: TypePredictResult, UserID: r.UserID, Data: r}
}

// Filter decides whether a subscriber receives an event. A nil filter
// receives everything.
type Filter func(Event) bool

// Subscription is one subscriber's handle on the bus.
type Subscription struct {
	ch     chan Event
	filter Filter
}

// C returns the subscriber's event channel.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Broadcaster is an in-process publish/subscribe bus.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	bufSize int
	dropped func() // optional drop counter hook
}

// New creates a broadcaster whose subscriber channels buffer bufSize events.
func New(bufSize int) *Broadcaster {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Broadcaster{
		subs:    make(map[*Subscription]struct{}),
		bufSize: bufSize,
	}
}

// OnDrop registers a hook called once per event dropped for a full
// subscriber. Must be set before events flow.
func (b *Broadcaster) OnDrop(fn func()) {
	b.dropped = fn
}

// Subscribe registers a subscriber. Close the returned subscription via
// Unsubscribe when done; an abandoned subscription fills up and drops
// events but never blocks publishers.
func (b *Broadcaster) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		ch:     make(chan Event, b.bufSize),
		filter: filter,
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}

// Publish delivers an event to every matching subscriber. Never blocks:
// a subscriber with a full buffer loses the event.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			if b.dropped != nil {
				b.dropped()
			}
		}
	}
}

// ForUser returns a filter matching public events plus events addressed
// to the given user.
func ForUser(userID string) Filter {
	return func(ev Event) bool {
		return ev.UserID == "" || ev.UserID == userID
	}
}
