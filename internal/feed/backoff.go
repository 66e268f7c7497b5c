package feed

import (
	"math/rand"
	"time"
)

// Backoff produces capped exponential reconnect delays with jitter.
// Not safe for concurrent use; each adapter owns one.
type Backoff struct {
	min     time.Duration
	max     time.Duration
	attempt int
}

// NewBackoff creates a backoff ranging from min to max.
func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = min
	}
	return &Backoff{min: min, max: max}
}

// Next returns the next delay: min·2^attempt capped at max, with up to
// 50% random jitter subtracted so reconnecting adapters do not stampede.
func (b *Backoff) Next() time.Duration {
	d := b.min << b.attempt
	if d > b.max || d <= 0 { // overflow guard for large attempts
		d = b.max
	} else {
		b.attempt++
	}

	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	return d - jitter
}

// Reset restores the initial delay after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}
