package predict

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

var (
	// ErrInvalidDirection is returned for a direction other than LONG/SHORT.
	ErrInvalidDirection = errors.New("predict: direction must be LONG or SHORT")

	// ErrInvalidLeverage is returned when leverage is outside [1, MaxLeverage].
	ErrInvalidLeverage = errors.New("predict: leverage out of range")

	// ErrInvalidDuration is returned when the duration is outside the
	// allowed window.
	ErrInvalidDuration = errors.New("predict: duration out of range")

	// ErrInvalidDeposit is returned for a non-positive or too-small deposit.
	ErrInvalidDeposit = errors.New("predict: deposit must be positive")
)

// Limits bounds the parameters of a new position.
type Limits struct {
	MaxLeverage int
	MinDuration int // seconds
	MaxDuration int // seconds
	MinDeposit  decimal.Decimal
}

// DefaultLimits returns the production bounds: leverage up to 100x,
// durations from 10 seconds to 24 hours.
func DefaultLimits() Limits {
	return Limits{
		MaxLeverage: 100,
		MinDuration: 10,
		MaxDuration: 86400,
		MinDeposit:  decimal.NewFromInt(1),
	}
}

// Validate checks an open request against the limits.
func (l Limits) Validate(req OpenRequest) error {
	if !req.Direction.Valid() {
		return ErrInvalidDirection
	}
	if req.Leverage < 1 || req.Leverage > l.MaxLeverage {
		return ErrInvalidLeverage
	}
	if req.Duration < l.MinDuration || req.Duration > l.MaxDuration {
		return ErrInvalidDuration
	}
	if req.Deposit.LessThan(l.MinDeposit) {
		return ErrInvalidDeposit
	}
	return nil
}

// OpenRequest carries everything needed to start a prediction. The market
// may be given either as separate exchange/symbol fields or combined as
// "exchange:SYMBOL" in Market.
type OpenRequest struct {
	UserID    string          `json:"user_id"`
	Market    string          `json:"market,omitempty"`
	Symbol    string          `json:"symbol"`
	Exchange  string          `json:"exchange"`
	Direction model.Direction `json:"direction"`
	Leverage  int             `json:"leverage"`
	Duration  int             `json:"duration_seconds"`
	Deposit   decimal.Decimal `json:"deposit"`
}
