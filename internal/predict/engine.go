package predict

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/broadcast"
	"github.com/coinarena/predict-engine/internal/market"
	"github.com/coinarena/predict-engine/internal/metrics"
	"github.com/coinarena/predict-engine/internal/model"
	"github.com/coinarena/predict-engine/internal/stats"
	"github.com/coinarena/predict-engine/internal/store"
)

var (
	// ErrAlreadyOpen is returned when the user already holds an open position.
	ErrAlreadyOpen = errors.New("predict: user already has an open position")

	// ErrInvalidMarket is returned when no fresh price exists for the
	// requested (exchange, symbol).
	ErrInvalidMarket = errors.New("predict: no current price for market")

	// ErrInsufficientVault is returned when the deposit exceeds the user's
	// vault balance.
	ErrInsufficientVault = errors.New("predict: deposit exceeds vault balance")
)

// Engine owns every open position. All state transitions run under one
// mutex: open is an atomic check-and-create per user, and liquidation and
// settlement both pass through finalize, which only acts on positions
// still present in the open set — so exactly one terminal transition
// happens no matter how the price tick and the timer race.
type Engine struct {
	store  store.Store
	cache  *market.Cache
	bus    *broadcast.Broadcaster
	stats  *stats.Aggregator
	sched  *Scheduler
	limits Limits

	// staleAfter is the freshness window: entry requires a price younger
	// than this, and settlement against an older price flags the result.
	staleAfter time.Duration

	now func() time.Time // injectable for tests

	mu       sync.Mutex
	open     map[string]*model.PredictionPosition // positionID → open position
	byUser   map[string]string                    // userID → positionID
	bySymbol map[market.Key]map[string]struct{}   // market → open positionIDs
}

// NewEngine creates the prediction engine. Call Recover before feeding it
// events so pending settlements survive restarts.
func NewEngine(st store.Store, cache *market.Cache, bus *broadcast.Broadcaster, agg *stats.Aggregator, limits Limits, staleAfter time.Duration) *Engine {
	e := &Engine{
		store:      st,
		cache:      cache,
		bus:        bus,
		stats:      agg,
		limits:     limits,
		staleAfter: staleAfter,
		now:        time.Now,
		open:       make(map[string]*model.PredictionPosition),
		byUser:     make(map[string]string),
		bySymbol:   make(map[market.Key]map[string]struct{}),
	}
	e.sched = NewScheduler(e.settleDue)
	return e
}

// Scheduler exposes the settlement scheduler (for shutdown).
func (e *Engine) Scheduler() *Scheduler {
	return e.sched
}

// Recover re-derives pending settlement timers from persisted open
// positions. Positions that expired while the process was down settle
// immediately.
func (e *Engine) Recover(ctx context.Context) error {
	positions, err := e.store.ListOpenPositions(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	for i := range positions {
		p := positions[i]
		e.open[p.ID] = &p
		e.byUser[p.UserID] = p.ID
		e.indexSymbolLocked(&p)
	}
	e.mu.Unlock()

	for _, p := range positions {
		e.sched.Arm(p.ID, p.FinishedAt)
	}

	if len(positions) > 0 {
		slog.Info("recovered open positions", "count", len(positions))
	}
	return nil
}

// Open starts a prediction: validates the request, atomically enforces the
// one-open-position-per-user rule, reads the entry price, debits the
// deposit, persists the position, and arms its settlement timer.
func (e *Engine) Open(ctx context.Context, req OpenRequest) (*model.PredictionPosition, error) {
	if err := e.limits.Validate(req); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.byUser[req.UserID]; exists {
		return nil, ErrAlreadyOpen
	}
	// Restart safety: the store is the source of truth for positions the
	// in-memory set has not seen (e.g. another instance wrote them).
	if _, err := e.store.GetOpenPositionByUser(ctx, req.UserID); err == nil {
		return nil, ErrAlreadyOpen
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := e.now()
	point, fresh := e.cache.Fresh(req.Exchange, req.Symbol, e.staleAfter, now)
	if !fresh {
		return nil, ErrInvalidMarket
	}

	if _, err := e.store.DebitVault(ctx, req.UserID, req.Deposit); err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return nil, ErrInsufficientVault
		}
		return nil, err
	}

	pos := &model.PredictionPosition{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Exchange:   req.Exchange,
		Direction:  req.Direction,
		Leverage:   req.Leverage,
		Deposit:    req.Deposit,
		EntryPrice: point.Price,
		CreatedAt:  now,
		Duration:   req.Duration,
		FinishedAt: now.Add(time.Duration(req.Duration) * time.Second),
		Status:     model.StatusOpen,
	}

	if err := e.store.InsertPosition(ctx, pos); err != nil {
		// Stake back: the position never existed.
		if _, cerr := e.store.CreditVault(ctx, req.UserID, req.Deposit); cerr != nil {
			slog.Error("refund after failed insert", "user", req.UserID, "err", cerr)
		}
		return nil, err
	}

	e.open[pos.ID] = pos
	e.byUser[pos.UserID] = pos.ID
	e.indexSymbolLocked(pos)
	e.sched.Arm(pos.ID, pos.FinishedAt)

	metrics.PredictionsOpened.WithLabelValues(string(pos.Direction)).Inc()
	metrics.OpenPositions.Set(float64(len(e.open)))

	slog.Info("position opened",
		"id", pos.ID,
		"user", pos.UserID,
		"market", pos.Exchange+":"+pos.Symbol,
		"direction", pos.Direction,
		"leverage", pos.Leverage,
		"deposit", pos.Deposit.String(),
		"entry", pos.EntryPrice.String(),
		"duration_s", pos.Duration,
	)

	cp := *pos
	return &cp, nil
}

// OnPrice evaluates every open position on the updated market against the
// new price and liquidates those whose leveraged loss consumes the full
// deposit. Invoked by the liquidation monitor on each accepted price tick.
func (e *Engine) OnPrice(p model.PricePoint) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := market.Key{Exchange: p.Exchange, Symbol: p.Symbol}
	for id := range e.bySymbol[key] {
		pos := e.open[id]
		if pos == nil {
			continue
		}
		pnl := PnL(pos.Direction, pos.EntryPrice, p.Price, pos.Leverage)
		if Liquidates(pnl) {
			e.finalizeLocked(pos, p.Price, pnl, true, false)
		}
	}
}

// settleDue performs time-based settlement when a position's duration
// elapses. A position already liquidated by a racing price tick is no
// longer in the open set — that is a no-op, not an error.
func (e *Engine) settleDue(positionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.open[positionID]
	if !ok {
		return // already terminal; the other racer won
	}

	now := e.now()
	point, fresh := e.cache.Fresh(pos.Exchange, pos.Symbol, e.staleAfter, now)

	closePrice := point.Price
	stale := !fresh
	if point.Price.IsZero() {
		// No price ever observed since entry required one, this only
		// happens if the cache restarted; fall back to the entry price.
		closePrice = pos.EntryPrice
		stale = true
	}

	pnl := PnL(pos.Direction, pos.EntryPrice, closePrice, pos.Leverage)
	// A crossing move the monitor never saw still liquidates.
	e.finalizeLocked(pos, closePrice, pnl, Liquidates(pnl), stale)
}

// finalizeLocked performs the position's single terminal transition.
// Caller holds e.mu and has verified the position is still open.
func (e *Engine) finalizeLocked(pos *model.PredictionPosition, closePrice, pnl decimal.Decimal, liquidated, stale bool) {
	status := model.StatusSettled
	if liquidated {
		status = model.StatusLiquidated
	}
	pos.Status = status

	delete(e.open, pos.ID)
	delete(e.byUser, pos.UserID)
	key := market.Key{Exchange: pos.Exchange, Symbol: pos.Symbol}
	if ids := e.bySymbol[key]; ids != nil {
		delete(ids, pos.ID)
		if len(ids) == 0 {
			delete(e.bySymbol, key)
		}
	}
	e.sched.Cancel(pos.ID)

	ctx := context.Background()
	if err := e.store.FinalizePosition(ctx, pos.ID, status); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("finalize position", "id", pos.ID, "err", err)
	}

	pnl = ClampPnL(pnl)
	outcome := OutcomeFor(pnl)
	payout := Payout(pos.Deposit, pnl)

	var newBalance decimal.Decimal
	var err error
	if payout.IsPositive() {
		newBalance, err = e.store.CreditVault(ctx, pos.UserID, payout)
	} else {
		newBalance, err = e.store.GetVault(ctx, pos.UserID)
	}
	if err != nil {
		slog.Error("vault update on close", "id", pos.ID, "err", err)
	}

	result := model.PredictionResult{
		PositionID:      pos.ID,
		UserID:          pos.UserID,
		Outcome:         outcome,
		IsLiquidated:    liquidated,
		ClosePrice:      closePrice,
		PnLPercent:      pnl,
		NewVaultBalance: newBalance,
		StalePrice:      stale,
		ClosedAt:        e.now(),
	}

	if err := e.store.InsertResult(ctx, &result); err != nil {
		slog.Error("insert result", "id", pos.ID, "err", err)
	}
	if _, err := e.stats.Record(ctx, pos.UserID, outcome); err != nil {
		slog.Error("record stats", "user", pos.UserID, "err", err)
	}
	e.bus.Publish(broadcast.ResultEvent(result))

	if liquidated {
		metrics.PredictionsLiquidated.Inc()
	} else {
		metrics.PredictionsSettled.WithLabelValues(string(outcome)).Inc()
	}
	metrics.OpenPositions.Set(float64(len(e.open)))

	slog.Info("position closed",
		"id", pos.ID,
		"user", pos.UserID,
		"outcome", outcome,
		"liquidated", liquidated,
		"close", closePrice.String(),
		"pnl_pct", pnl.String(),
		"balance", newBalance.String(),
	)
}

func (e *Engine) indexSymbolLocked(pos *model.PredictionPosition) {
	key := market.Key{Exchange: pos.Exchange, Symbol: pos.Symbol}
	ids := e.bySymbol[key]
	if ids == nil {
		ids = make(map[string]struct{})
		e.bySymbol[key] = ids
	}
	ids[pos.ID] = struct{}{}
}

// OpenCount returns the number of open positions.
func (e *Engine) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}
