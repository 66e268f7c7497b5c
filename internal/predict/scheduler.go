package predict

import (
	"sync"
	"time"
)

// Scheduler arms one cancellable timer per open position and fires the
// settlement callback when the position's duration elapses. Liquidation
// cancels the pending timer; a timer that fires after a liquidation won
// the race anyway finds a non-open position and the engine no-ops.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	fire   func(positionID string)
}

// NewScheduler creates a scheduler that calls fire(positionID) when a
// position's timer elapses. fire runs on the timer goroutine.
func NewScheduler(fire func(positionID string)) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		fire:   fire,
	}
}

// Arm schedules settlement of a position at the given instant. An instant
// in the past fires immediately — this is how timers are recovered after
// a restart when the position expired while the process was down.
func (s *Scheduler) Arm(positionID string, at time.Time) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[positionID]; ok {
		prev.Stop()
	}
	s.timers[positionID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, positionID)
		s.mu.Unlock()
		s.fire(positionID)
	})
}

// Cancel stops the pending timer for a position, if any.
func (s *Scheduler) Cancel(positionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tm, ok := s.timers[positionID]; ok {
		tm.Stop()
		delete(s.timers, positionID)
	}
}

// Stop cancels all pending timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, tm := range s.timers {
		tm.Stop()
		delete(s.timers, id)
	}
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
