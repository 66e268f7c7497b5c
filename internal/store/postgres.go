package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
	seed decimal.Decimal
}

// NewPostgresStore creates a PostgreSQL-backed store with the given vault
// seed balance for new users.
func NewPostgresStore(pool *pgxpool.Pool, seedBalance decimal.Decimal) *PostgresStore {
	return &PostgresStore{pool: pool, seed: seedBalance}
}

const positionColumns = `id, user_id, symbol, exchange, direction, leverage,
	deposit::TEXT, entry_price::TEXT, created_at, duration_seconds, finished_at, status`

func (s *PostgresStore) InsertPosition(ctx context.Context, p *model.PredictionPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (id, user_id, symbol, exchange, direction, leverage,
		                        deposit, entry_price, created_at, duration_seconds, finished_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9, $10, $11, $12)`,
		p.ID, p.UserID, p.Symbol, p.Exchange, string(p.Direction), p.Leverage,
		p.Deposit.String(), p.EntryPrice.String(),
		p.CreatedAt, p.Duration, p.FinishedAt, string(p.Status),
	)
	return err
}

func (s *PostgresStore) FinalizePosition(ctx context.Context, id string, status model.PositionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions SET status = $2 WHERE id = $1 AND status = 'open'`,
		id, string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*model.PredictionPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1`, id)
	return scanPosition(row)
}

func (s *PostgresStore) GetOpenPositionByUser(ctx context.Context, userID string) (*model.PredictionPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1 AND status = 'open'`, userID)
	return scanPosition(row)
}

func (s *PostgresStore) ListOpenPositions(ctx context.Context) ([]model.PredictionPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE status = 'open' ORDER BY finished_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (s *PostgresStore) ListPositionsByUser(ctx context.Context, userID string) ([]model.PredictionPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (s *PostgresStore) InsertResult(ctx context.Context, r *model.PredictionResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results (position_id, user_id, outcome, is_liquidated,
		                      close_price, pnl_percent, new_vault_balance, stale_price, closed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		r.PositionID, r.UserID, string(r.Outcome), r.IsLiquidated,
		r.ClosePrice.String(), r.PnLPercent.String(), r.NewVaultBalance.String(),
		r.StalePrice, r.ClosedAt,
	)
	return err
}

func (s *PostgresStore) ListResultsByUser(ctx context.Context, userID string) ([]model.PredictionResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT position_id, user_id, outcome, is_liquidated,
		        close_price::TEXT, pnl_percent::TEXT, new_vault_balance::TEXT, stale_price, closed_at
		 FROM results WHERE user_id = $1 ORDER BY closed_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.PredictionResult
	for rows.Next() {
		var r model.PredictionResult
		var outcome, closeS, pnlS, balS string
		if err := rows.Scan(&r.PositionID, &r.UserID, &outcome, &r.IsLiquidated,
			&closeS, &pnlS, &balS, &r.StalePrice, &r.ClosedAt); err != nil {
			return nil, err
		}
		r.Outcome = model.Outcome(outcome)
		r.ClosePrice, _ = decimal.NewFromString(closeS)
		r.PnLPercent, _ = decimal.NewFromString(pnlS)
		r.NewVaultBalance, _ = decimal.NewFromString(balS)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) GetVault(ctx context.Context, userID string) (decimal.Decimal, error) {
	if err := s.seedVault(ctx, userID); err != nil {
		return decimal.Zero, err
	}

	var balS string
	err := s.pool.QueryRow(ctx,
		`SELECT balance::TEXT FROM vaults WHERE user_id = $1`, userID).Scan(&balS)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get vault %s: %w", userID, err)
	}
	balance, _ := decimal.NewFromString(balS)
	return balance, nil
}

func (s *PostgresStore) DebitVault(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := s.seedVault(ctx, userID); err != nil {
		return decimal.Zero, err
	}

	var balS string
	err := s.pool.QueryRow(ctx,
		`UPDATE vaults SET balance = balance - $2::NUMERIC
		 WHERE user_id = $1 AND balance >= $2::NUMERIC
		 RETURNING balance::TEXT`,
		userID, amount.String()).Scan(&balS)
	if errors.Is(err, pgx.ErrNoRows) {
		balance, gerr := s.GetVault(ctx, userID)
		if gerr != nil {
			return decimal.Zero, gerr
		}
		return balance, ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, err
	}
	balance, _ := decimal.NewFromString(balS)
	return balance, nil
}

func (s *PostgresStore) CreditVault(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := s.seedVault(ctx, userID); err != nil {
		return decimal.Zero, err
	}

	var balS string
	err := s.pool.QueryRow(ctx,
		`UPDATE vaults SET balance = balance + $2::NUMERIC
		 WHERE user_id = $1 RETURNING balance::TEXT`,
		userID, amount.String()).Scan(&balS)
	if err != nil {
		return decimal.Zero, err
	}
	balance, _ := decimal.NewFromString(balS)
	return balance, nil
}

// seedVault creates the user's vault row with the seed balance if missing.
func (s *PostgresStore) seedVault(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vaults (user_id, balance) VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, s.seed.String())
	return err
}

func (s *PostgresStore) GetStats(ctx context.Context, userID string) (*model.UserStats, error) {
	st := &model.UserStats{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT wins, losses, draws, current_win_streak, current_lose_streak,
		        max_win_streak, max_lose_streak
		 FROM user_stats WHERE user_id = $1`, userID).
		Scan(&st.Wins, &st.Losses, &st.Draws, &st.CurrentWinStreak, &st.CurrentLoseStreak,
			&st.MaxWinStreak, &st.MaxLoseStreak)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil // zero-valued stats for a fresh user
	}
	if err != nil {
		return nil, fmt.Errorf("get stats %s: %w", userID, err)
	}
	return st, nil
}

func (s *PostgresStore) SaveStats(ctx context.Context, st *model.UserStats) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_stats (user_id, wins, losses, draws,
		                         current_win_streak, current_lose_streak,
		                         max_win_streak, max_lose_streak)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		   wins = EXCLUDED.wins, losses = EXCLUDED.losses, draws = EXCLUDED.draws,
		   current_win_streak = EXCLUDED.current_win_streak,
		   current_lose_streak = EXCLUDED.current_lose_streak,
		   max_win_streak = EXCLUDED.max_win_streak,
		   max_lose_streak = EXCLUDED.max_lose_streak`,
		st.UserID, st.Wins, st.Losses, st.Draws,
		st.CurrentWinStreak, st.CurrentLoseStreak, st.MaxWinStreak, st.MaxLoseStreak)
	return err
}

// scanPosition reads one position row.
func scanPosition(row pgx.Row) (*model.PredictionPosition, error) {
	var p model.PredictionPosition
	var direction, status, depositS, entryS string

	err := row.Scan(&p.ID, &p.UserID, &p.Symbol, &p.Exchange, &direction, &p.Leverage,
		&depositS, &entryS, &p.CreatedAt, &p.Duration, &p.FinishedAt, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Direction = model.Direction(direction)
	p.Status = model.PositionStatus(status)
	p.Deposit, _ = decimal.NewFromString(depositS)
	p.EntryPrice, _ = decimal.NewFromString(entryS)
	return &p, nil
}

func scanPositions(rows pgx.Rows) ([]model.PredictionPosition, error) {
	var positions []model.PredictionPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}
