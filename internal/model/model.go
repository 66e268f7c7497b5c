// Package model defines the core domain types shared across the prediction engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a prediction position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// PositionStatus is the lifecycle state of a prediction position.
// Open is the only non-terminal state; Liquidated and Settled are final.
type PositionStatus string

const (
	StatusOpen       PositionStatus = "open"
	StatusLiquidated PositionStatus = "liquidated"
	StatusSettled    PositionStatus = "settled"
)

// Outcome is the result bucket of a finished position.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	OutcomeDraw Outcome = "DRAW"
)

// PriceEvent is a canonical tick emitted by an exchange feed adapter.
// Vendor-specific payloads never leave the adapter that parsed them.
type PriceEvent struct {
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Change24h decimal.Decimal `json:"change_24h"` // percent
	Timestamp time.Time       `json:"timestamp"`
}

// PricePoint is the latest known price for one (exchange, symbol) key.
// Owned exclusively by the price cache; replaced on each newer tick,
// never deleted. Staleness is derived from Timestamp, not stored.
type PricePoint struct {
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Change24h decimal.Decimal `json:"change_24h"`
	Timestamp time.Time       `json:"timestamp"`
}

// Age reports how old the point is relative to now.
func (p PricePoint) Age(now time.Time) time.Duration {
	return now.Sub(p.Timestamp)
}

// ExchangeRate is the latest fiat conversion rate.
type ExchangeRate struct {
	Rate      decimal.Decimal `json:"rate"`
	Timestamp time.Time       `json:"timestamp"`
}

// PredictionPosition is one user's leveraged directional bet. Created only
// by the prediction engine on a validated start request; mutated only by
// the engine during liquidation/settlement; immutable once Status leaves
// StatusOpen. At most one open position exists per user at any time.
type PredictionPosition struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	Symbol     string          `json:"symbol" db:"symbol"`
	Exchange   string          `json:"exchange" db:"exchange"`
	Direction  Direction       `json:"direction" db:"direction"`
	Leverage   int             `json:"leverage" db:"leverage"`
	Deposit    decimal.Decimal `json:"deposit" db:"deposit"`
	EntryPrice decimal.Decimal `json:"entry_price" db:"entry_price"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	Duration   int             `json:"duration_seconds" db:"duration_seconds"`
	FinishedAt time.Time       `json:"finished_at" db:"finished_at"` // CreatedAt + Duration
	Status     PositionStatus  `json:"status" db:"status"`
}

// PredictionResult is created exactly once per position, at the
// Open→terminal transition.
type PredictionResult struct {
	PositionID      string          `json:"position_id"`
	UserID          string          `json:"user_id"`
	Outcome         Outcome         `json:"outcome"`
	IsLiquidated    bool            `json:"is_liquidated"`
	ClosePrice      decimal.Decimal `json:"close_price"`
	PnLPercent      decimal.Decimal `json:"pnl_percent"`
	NewVaultBalance decimal.Decimal `json:"new_vault_balance"`
	StalePrice      bool            `json:"stale_price,omitempty"` // close price older than freshness window
	ClosedAt        time.Time       `json:"closed_at"`
}

// UserStats tracks per-user win/loss/draw counters and streaks.
// Mutated only by the stats aggregator, once per finished position.
// Draws never touch the streak counters.
type UserStats struct {
	UserID            string `json:"user_id" db:"user_id"`
	Wins              int    `json:"wins" db:"wins"`
	Losses            int    `json:"losses" db:"losses"`
	Draws             int    `json:"draws" db:"draws"`
	CurrentWinStreak  int    `json:"current_win_streak" db:"current_win_streak"`
	CurrentLoseStreak int    `json:"current_lose_streak" db:"current_lose_streak"`
	MaxWinStreak      int    `json:"max_win_streak" db:"max_win_streak"`
	MaxLoseStreak     int    `json:"max_lose_streak" db:"max_lose_streak"`
}
