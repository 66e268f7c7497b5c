// Package store defines the persistence interface for the prediction engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Position history, vault balances, and user stats are durable. Price
// points and exchange rates are ephemeral and never reach this layer.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrInsufficientFunds is returned when a vault debit exceeds the
	// available balance.
	ErrInsufficientFunds = errors.New("store: insufficient vault balance")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Prediction positions ---

	// InsertPosition persists a newly opened position.
	InsertPosition(ctx context.Context, p *model.PredictionPosition) error

	// FinalizePosition moves a position to a terminal status. A position
	// is never mutated again once finalized.
	FinalizePosition(ctx context.Context, id string, status model.PositionStatus) error

	// GetPosition retrieves a position by ID.
	GetPosition(ctx context.Context, id string) (*model.PredictionPosition, error)

	// GetOpenPositionByUser returns the user's open position, or
	// ErrNotFound when none exists.
	GetOpenPositionByUser(ctx context.Context, userID string) (*model.PredictionPosition, error)

	// ListOpenPositions returns all open positions. Used to re-derive
	// pending settlement timers on restart.
	ListOpenPositions(ctx context.Context) ([]model.PredictionPosition, error)

	// ListPositionsByUser returns the user's position history.
	ListPositionsByUser(ctx context.Context, userID string) ([]model.PredictionPosition, error)

	// --- Results (immutable) ---

	// InsertResult appends the position's one terminal result.
	InsertResult(ctx context.Context, r *model.PredictionResult) error

	// ListResultsByUser returns the user's result history.
	ListResultsByUser(ctx context.Context, userID string) ([]model.PredictionResult, error)

	// --- Vault ---

	// GetVault returns the user's spendable balance, seeding new users
	// with the configured starting balance.
	GetVault(ctx context.Context, userID string) (decimal.Decimal, error)

	// DebitVault atomically subtracts amount and returns the new balance,
	// or ErrInsufficientFunds without changing anything.
	DebitVault(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)

	// CreditVault atomically adds amount and returns the new balance.
	CreditVault(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)

	// --- Stats ---

	// GetStats returns the user's counters, zero-valued when the user has
	// no finished positions yet.
	GetStats(ctx context.Context, userID string) (*model.UserStats, error)

	// SaveStats upserts the user's counters.
	SaveStats(ctx context.Context, s *model.UserStats) error
}
