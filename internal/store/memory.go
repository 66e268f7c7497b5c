package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[string]*model.PredictionPosition
	results   []model.PredictionResult
	vaults    map[string]decimal.Decimal
	stats     map[string]*model.UserStats
	seed      decimal.Decimal
}

// NewMemoryStore creates an in-memory store that seeds new users' vaults
// with the given starting balance.
func NewMemoryStore(seedBalance decimal.Decimal) *MemoryStore {
	return &MemoryStore{
		positions: make(map[string]*model.PredictionPosition),
		vaults:    make(map[string]decimal.Decimal),
		stats:     make(map[string]*model.UserStats),
		seed:      seedBalance,
	}
}

func (s *MemoryStore) InsertPosition(_ context.Context, p *model.PredictionPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *MemoryStore) FinalizePosition(_ context.Context, id string, status model.PositionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id string) (*model.PredictionPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetOpenPositionByUser(_ context.Context, userID string) (*model.PredictionPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.positions {
		if p.UserID == userID && p.Status == model.StatusOpen {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListOpenPositions(_ context.Context) ([]model.PredictionPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []model.PredictionPosition
	for _, p := range s.positions {
		if p.Status == model.StatusOpen {
			open = append(open, *p)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].FinishedAt.Before(open[j].FinishedAt) })
	return open, nil
}

func (s *MemoryStore) ListPositionsByUser(_ context.Context, userID string) ([]model.PredictionPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PredictionPosition
	for _, p := range s.positions {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) InsertResult(_ context.Context, r *model.PredictionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, *r)
	return nil
}

func (s *MemoryStore) ListResultsByUser(_ context.Context, userID string) ([]model.PredictionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PredictionResult
	for _, r := range s.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetVault(_ context.Context, userID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vaultLocked(userID), nil
}

func (s *MemoryStore) DebitVault(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.vaultLocked(userID)
	if balance.LessThan(amount) {
		return balance, ErrInsufficientFunds
	}
	balance = balance.Sub(amount)
	s.vaults[userID] = balance
	return balance, nil
}

func (s *MemoryStore) CreditVault(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.vaultLocked(userID).Add(amount)
	s.vaults[userID] = balance
	return balance, nil
}

// vaultLocked seeds an unknown user and returns the balance. Caller holds mu.
func (s *MemoryStore) vaultLocked(userID string) decimal.Decimal {
	if balance, ok := s.vaults[userID]; ok {
		return balance
	}
	s.vaults[userID] = s.seed
	return s.seed
}

func (s *MemoryStore) GetStats(_ context.Context, userID string) (*model.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.stats[userID]; ok {
		cp := *st
		return &cp, nil
	}
	return &model.UserStats{UserID: userID}, nil
}

func (s *MemoryStore) SaveStats(_ context.Context, st *model.UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *st
	s.stats[st.UserID] = &cp
	return nil
}
