// Package stats maintains per-user win/loss/draw counters and streaks.
// Each finished position yields exactly one result, recorded here once.
package stats

import (
	"context"
	"sync"

	"github.com/coinarena/predict-engine/internal/model"
	"github.com/coinarena/predict-engine/internal/store"
)

// Aggregator applies prediction outcomes to user stats. A single mutex
// serializes read-modify-write so concurrent settlements for different
// positions of the same user cannot lose an update.
type Aggregator struct {
	store store.Store
	mu    sync.Mutex
}

// New creates an aggregator backed by the given store.
func New(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Record applies one outcome to the user's stats and returns the updated
// counters. Draws increment only the draw counter; streaks are untouched.
func (a *Aggregator) Record(ctx context.Context, userID string, outcome model.Outcome) (*model.UserStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, err := a.store.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	Apply(st, outcome)

	if err := a.store.SaveStats(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Get returns the user's current stats.
func (a *Aggregator) Get(ctx context.Context, userID string) (*model.UserStats, error) {
	return a.store.GetStats(ctx, userID)
}

// Apply mutates st with one outcome. Split out for direct testing.
func Apply(st *model.UserStats, outcome model.Outcome) {
	switch outcome {
	case model.OutcomeWin:
		st.Wins++
		st.CurrentWinStreak++
		st.CurrentLoseStreak = 0
		if st.CurrentWinStreak > st.MaxWinStreak {
			st.MaxWinStreak = st.CurrentWinStreak
		}
	case model.OutcomeLoss:
		st.Losses++
		st.CurrentLoseStreak++
		st.CurrentWinStreak = 0
		if st.CurrentLoseStreak > st.MaxLoseStreak {
			st.MaxLoseStreak = st.CurrentLoseStreak
		}
	case model.OutcomeDraw:
		st.Draws++
	}
}
