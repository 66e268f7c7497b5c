package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestMemoryStore_VaultSeedAndDebit(t *testing.T) {
	s := NewMemoryStore(d(10000))
	ctx := context.Background()

	balance, err := s.GetVault(ctx, "alice")
	if err != nil || !balance.Equal(d(10000)) {
		t.Fatalf("expected seeded 10000, got %s %v", balance, err)
	}

	balance, err = s.DebitVault(ctx, "alice", d(4000))
	if err != nil || !balance.Equal(d(6000)) {
		t.Fatalf("expected 6000 after debit, got %s %v", balance, err)
	}

	_, err = s.DebitVault(ctx, "alice", d(7000))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Failed debit must not change the balance.
	balance, _ = s.GetVault(ctx, "alice")
	if !balance.Equal(d(6000)) {
		t.Errorf("balance changed on failed debit: %s", balance)
	}

	balance, err = s.CreditVault(ctx, "alice", d(500))
	if err != nil || !balance.Equal(d(6500)) {
		t.Fatalf("expected 6500 after credit, got %s %v", balance, err)
	}
}

func TestMemoryStore_PositionLifecycle(t *testing.T) {
	s := NewMemoryStore(d(10000))
	ctx := context.Background()
	now := time.Now().UTC()

	p := &model.PredictionPosition{
		ID:         "pos-1",
		UserID:     "alice",
		Symbol:     "BTCUSDT",
		Exchange:   "binance",
		Direction:  model.Long,
		Leverage:   5,
		Deposit:    d(1000),
		EntryPrice: d(50000),
		CreatedAt:  now,
		Duration:   30,
		FinishedAt: now.Add(30 * time.Second),
		Status:     model.StatusOpen,
	}
	if err := s.InsertPosition(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetOpenPositionByUser(ctx, "alice")
	if err != nil || got.ID != "pos-1" {
		t.Fatalf("expected open position pos-1, got %v %v", got, err)
	}

	open, _ := s.ListOpenPositions(ctx)
	if len(open) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(open))
	}

	if err := s.FinalizePosition(ctx, "pos-1", model.StatusSettled); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if _, err := s.GetOpenPositionByUser(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after settle, got %v", err)
	}

	got, _ = s.GetPosition(ctx, "pos-1")
	if got.Status != model.StatusSettled {
		t.Errorf("expected settled, got %s", got.Status)
	}
}

func TestMemoryStore_StatsZeroForFreshUser(t *testing.T) {
	s := NewMemoryStore(d(10000))
	st, err := s.GetStats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Wins != 0 || st.Losses != 0 || st.Draws != 0 {
		t.Errorf("expected zero stats, got %+v", st)
	}
}
