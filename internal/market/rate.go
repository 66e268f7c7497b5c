package market

import (
	"sync"

	"github.com/coinarena/predict-engine/internal/model"
	"github.com/shopspring/decimal"
)

// RateListener receives a notification after each accepted rate update.
type RateListener func(model.ExchangeRate)

// RateTracker holds the latest fiat conversion rate, with the same
// timestamp-guarded update discipline as the price cache but for a single
// scalar instead of a keyed map.
type RateTracker struct {
	mu        sync.RWMutex
	rate      model.ExchangeRate
	set       bool
	listeners []RateListener
}

// NewRateTracker creates an empty rate tracker.
func NewRateTracker() *RateTracker {
	return &RateTracker{}
}

// OnUpdate registers a listener invoked after each accepted update.
// Must be called before updates start flowing.
func (t *RateTracker) OnUpdate(fn RateListener) {
	t.listeners = append(t.listeners, fn)
}

// Update stores the rate if its timestamp is not older than the current one.
// Returns true if accepted.
func (t *RateTracker) Update(r model.ExchangeRate) bool {
	t.mu.Lock()
	if t.set && r.Timestamp.Before(t.rate.Timestamp) {
		t.mu.Unlock()
		return false
	}
	t.rate = r
	t.set = true
	t.mu.Unlock()

	for _, fn := range t.listeners {
		fn(r)
	}
	return true
}

// Get returns the latest rate, if one has been observed.
func (t *RateTracker) Get() (model.ExchangeRate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rate, t.set
}

// Convert applies the latest rate to an amount. Returns the amount
// unchanged when no rate has been observed yet.
func (t *RateTracker) Convert(amount decimal.Decimal) decimal.Decimal {
	r, ok := t.Get()
	if !ok {
		return amount
	}
	return amount.Mul(r.Rate)
}
