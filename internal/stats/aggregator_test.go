package stats

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
	"github.com/coinarena/predict-engine/internal/store"
)

func TestApply_WinStreaks(t *testing.T) {
	st := &model.UserStats{UserID: "u"}

	for i := 0; i < 3; i++ {
		Apply(st, model.OutcomeWin)
	}

	if st.Wins != 3 || st.CurrentWinStreak != 3 || st.MaxWinStreak != 3 {
		t.Errorf("after 3 wins: %+v", st)
	}

	Apply(st, model.OutcomeLoss)
	if st.CurrentWinStreak != 0 {
		t.Errorf("loss should reset win streak: %+v", st)
	}
	if st.CurrentLoseStreak != 1 || st.MaxLoseStreak != 1 {
		t.Errorf("loss streak not started: %+v", st)
	}
	// Max win streak survives the reset.
	if st.MaxWinStreak != 3 {
		t.Errorf("max win streak lost: %+v", st)
	}
}

func TestApply_LossStreakSymmetric(t *testing.T) {
	st := &model.UserStats{UserID: "u"}

	Apply(st, model.OutcomeLoss)
	Apply(st, model.OutcomeLoss)
	Apply(st, model.OutcomeWin)
	Apply(st, model.OutcomeLoss)

	if st.Losses != 3 || st.Wins != 1 {
		t.Errorf("counters wrong: %+v", st)
	}
	if st.MaxLoseStreak != 2 || st.CurrentLoseStreak != 1 {
		t.Errorf("lose streaks wrong: %+v", st)
	}
}

func TestApply_DrawDoesNotTouchStreaks(t *testing.T) {
	st := &model.UserStats{UserID: "u"}

	Apply(st, model.OutcomeWin)
	Apply(st, model.OutcomeWin)
	Apply(st, model.OutcomeDraw)
	Apply(st, model.OutcomeWin)

	if st.Draws != 1 {
		t.Errorf("expected 1 draw: %+v", st)
	}
	// Draw neither resets nor extends the running streak.
	if st.CurrentWinStreak != 3 || st.MaxWinStreak != 3 {
		t.Errorf("draw altered streaks: %+v", st)
	}
}

func TestRecord_PersistsThroughStore(t *testing.T) {
	ms := store.NewMemoryStore(decimal.NewFromInt(10000))
	agg := New(ms)
	ctx := context.Background()

	if _, err := agg.Record(ctx, "alice", model.OutcomeWin); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := agg.Record(ctx, "alice", model.OutcomeWin); err != nil {
		t.Fatalf("record: %v", err)
	}

	st, err := agg.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.Wins != 2 || st.CurrentWinStreak != 2 {
		t.Errorf("stats not persisted: %+v", st)
	}
}
