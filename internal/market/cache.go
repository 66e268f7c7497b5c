// Package market owns the latest known market state: a price cache keyed by
// (exchange, symbol) and a single fiat exchange-rate tracker. Both accept
// updates with the same discipline — an incoming value replaces the stored
// one only if its timestamp is not older — so replaying out-of-order or
// duplicate ticks converges to the newest state.
package market

import (
	"sync"
	"time"

	"github.com/coinarena/predict-engine/internal/model"
)

// Listener receives a notification after each accepted price update.
// Listeners must not block; slow downstream work belongs behind a channel.
type Listener func(model.PricePoint)

// Cache is the single logical owner of "latest known price" per
// (exchange, symbol). Updates are per-key atomic replacements; no
// operation blocks on another key.
type Cache struct {
	mu        sync.RWMutex
	points    map[Key]model.PricePoint
	listeners []Listener
}

// NewCache creates an empty price cache.
func NewCache() *Cache {
	return &Cache{
		points: make(map[Key]model.PricePoint),
	}
}

// OnUpdate registers a listener invoked after each accepted update.
// Must be called before ticks start flowing; not safe to call concurrently
// with Update.
func (c *Cache) OnUpdate(fn Listener) {
	c.listeners = append(c.listeners, fn)
}

// Update stores the event's price point if its timestamp is not older than
// the currently stored one. Returns true if the point was accepted. A stale
// tick is silently dropped — this is not an error, just an out-of-order
// arrival that lost the race.
func (c *Cache) Update(e model.PriceEvent) bool {
	key := Key{Exchange: e.Exchange, Symbol: e.Symbol}
	point := model.PricePoint{
		Exchange:  e.Exchange,
		Symbol:    e.Symbol,
		Price:     e.Price,
		Volume:    e.Volume,
		Change24h: e.Change24h,
		Timestamp: e.Timestamp,
	}

	c.mu.Lock()
	if prev, ok := c.points[key]; ok && e.Timestamp.Before(prev.Timestamp) {
		c.mu.Unlock()
		return false
	}
	c.points[key] = point
	c.mu.Unlock()

	for _, fn := range c.listeners {
		fn(point)
	}
	return true
}

// Get returns the latest point for (exchange, symbol), if any.
func (c *Cache) Get(exchange, symbol string) (model.PricePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.points[Key{Exchange: exchange, Symbol: symbol}]
	return p, ok
}

// Fresh returns the latest point only if it is no older than maxAge.
// The point is still returned on staleness so callers can use the most
// recent known price and flag the result, rather than treating it as zero.
func (c *Cache) Fresh(exchange, symbol string, maxAge time.Duration, now time.Time) (model.PricePoint, bool) {
	p, ok := c.Get(exchange, symbol)
	if !ok {
		return model.PricePoint{}, false
	}
	return p, p.Age(now) <= maxAge
}

// Snapshot returns a copy of all stored points.
func (c *Cache) Snapshot() []model.PricePoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := make([]model.PricePoint, 0, len(c.points))
	for _, p := range c.points {
		points = append(points, p)
	}
	return points
}
