// Package predict owns the lifecycle of prediction positions: open,
// live liquidation monitoring, and time-based settlement. A position makes
// exactly one Open→terminal transition; the liquidation monitor and the
// settlement scheduler race freely and the loser observes a non-open
// position and exits silently.
//
// All monetary values use shopspring/decimal — never float64 for money.
package predict

import (
	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

var (
	hundred = decimal.NewFromInt(100)

	// liquidationThreshold is the leveraged loss that consumes the full
	// deposit: pnl <= -100 forces immediate liquidation.
	liquidationThreshold = decimal.NewFromInt(-100)
)

// PnL computes the leveraged percentage profit/loss for a position:
//
//	((current − entry) / entry) × 100 × leverage, negated for shorts.
//
// A zero entry price yields zero; positions are never opened without a
// priced market, so this only guards a corrupted record.
func PnL(direction model.Direction, entry, current decimal.Decimal, leverage int) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}

	pnl := current.Sub(entry).Div(entry).Mul(hundred).Mul(decimal.NewFromInt(int64(leverage)))
	if direction == model.Short {
		pnl = pnl.Neg()
	}
	return pnl
}

// Liquidates reports whether the leveraged loss consumes the full deposit.
func Liquidates(pnl decimal.Decimal) bool {
	return pnl.LessThanOrEqual(liquidationThreshold)
}

// ClampPnL floors pnl at −100: a stake cannot lose more than itself.
func ClampPnL(pnl decimal.Decimal) decimal.Decimal {
	if pnl.LessThan(liquidationThreshold) {
		return liquidationThreshold
	}
	return pnl
}

// OutcomeFor buckets a settlement pnl: positive → Win, negative → Loss,
// exactly zero → Draw.
func OutcomeFor(pnl decimal.Decimal) model.Outcome {
	switch {
	case pnl.IsPositive():
		return model.OutcomeWin
	case pnl.IsNegative():
		return model.OutcomeLoss
	default:
		return model.OutcomeDraw
	}
}

// Payout returns the amount credited back to the vault for a settled
// position: deposit + deposit × pnl/100, never negative.
func Payout(deposit, pnl decimal.Decimal) decimal.Decimal {
	payout := deposit.Add(deposit.Mul(ClampPnL(pnl)).Div(hundred))
	if payout.IsNegative() {
		return decimal.Zero
	}
	return payout
}
