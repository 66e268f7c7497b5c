package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read paths: open-position lookups and user stats.
// Writes go to the primary store and invalidate the cache. A failed
// invalidation can serve a stale entry for up to the TTL; the TTL is kept
// short so an instance that missed the invalidation converges quickly.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertPosition(ctx context.Context, p *model.PredictionPosition) error {
	if err := s.primary.InsertPosition(ctx, p); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, openPositionKey(p.UserID)).Err(); err != nil {
		slog.Warn("redis invalidate open position", "user", p.UserID, "err", err)
	}
	return nil
}

func (s *CachedStore) FinalizePosition(ctx context.Context, id string, status model.PositionStatus) error {
	// Need the owner to invalidate the open-position cache entry.
	p, err := s.primary.GetPosition(ctx, id)
	if err != nil {
		return err
	}
	if err := s.primary.FinalizePosition(ctx, id, status); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, openPositionKey(p.UserID)).Err(); err != nil {
		slog.Warn("redis invalidate open position", "user", p.UserID, "err", err)
	}
	return nil
}

func (s *CachedStore) InsertResult(ctx context.Context, r *model.PredictionResult) error {
	return s.primary.InsertResult(ctx, r)
}

func (s *CachedStore) SaveStats(ctx context.Context, st *model.UserStats) error {
	if err := s.primary.SaveStats(ctx, st); err != nil {
		return err
	}
	if data, err := json.Marshal(st); err == nil {
		s.rdb.Set(ctx, statsKey(st.UserID), data, s.ttl)
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetOpenPositionByUser(ctx context.Context, userID string) (*model.PredictionPosition, error) {
	data, err := s.rdb.Get(ctx, openPositionKey(userID)).Bytes()
	if err == nil {
		var p model.PredictionPosition
		if json.Unmarshal(data, &p) == nil && p.Status == model.StatusOpen {
			return &p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Debug("redis get open position", "user", userID, "err", err)
	}

	p, err := s.primary.GetOpenPositionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, openPositionKey(userID), data, s.ttl)
	}
	return p, nil
}

func (s *CachedStore) GetStats(ctx context.Context, userID string) (*model.UserStats, error) {
	data, err := s.rdb.Get(ctx, statsKey(userID)).Bytes()
	if err == nil {
		var st model.UserStats
		if json.Unmarshal(data, &st) == nil {
			return &st, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Debug("redis get stats", "user", userID, "err", err)
	}

	st, err := s.primary.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(st); err == nil {
		s.rdb.Set(ctx, statsKey(userID), data, s.ttl)
	}
	return st, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetPosition(ctx context.Context, id string) (*model.PredictionPosition, error) {
	return s.primary.GetPosition(ctx, id)
}

func (s *CachedStore) ListOpenPositions(ctx context.Context) ([]model.PredictionPosition, error) {
	return s.primary.ListOpenPositions(ctx)
}

func (s *CachedStore) ListPositionsByUser(ctx context.Context, userID string) ([]model.PredictionPosition, error) {
	return s.primary.ListPositionsByUser(ctx, userID)
}

func (s *CachedStore) ListResultsByUser(ctx context.Context, userID string) ([]model.PredictionResult, error) {
	return s.primary.ListResultsByUser(ctx, userID)
}

// Vault balances are money: always read and write the source of truth.

func (s *CachedStore) GetVault(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.primary.GetVault(ctx, userID)
}

func (s *CachedStore) DebitVault(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.primary.DebitVault(ctx, userID, amount)
}

func (s *CachedStore) CreditVault(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.primary.CreditVault(ctx, userID, amount)
}

func openPositionKey(uid string) string { return fmt.Sprintf("open-position:%s", uid) }
func statsKey(uid string) string        { return fmt.Sprintf("stats:%s", uid) }
