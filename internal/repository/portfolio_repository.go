package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/model"
)

// PortfolioRepository is the SQLite-backed transactional position store.
//
// Writer semantics: BeginTransaction acquires a process-wide mutex, so
// transactions over the whole store are strictly serialized, not merely
// isolated per investor. Weakening this to per-investor locking would change
// observable interleaving and must not be done silently.
type PortfolioRepository struct {
	db *sql.DB

	// writer serializes all transactions over the position store.
	writer sync.Mutex
}

// NewPortfolioRepository creates a new repository instance.
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// PortfolioTx is an explicit transaction handle over the position store.
// All mutations go through the handle; the working copy becomes visible to
// readers of the committed store only after Commit. Using a handle after
// Commit or Rollback returns apperrors.ErrNoOpenTransaction.
type PortfolioTx struct {
	tx   *sql.Tx
	repo *PortfolioRepository
	done bool
}

// BeginTransaction opens a transaction and takes exclusive ownership of the
// store. The caller must end the transaction with Commit or Rollback;
// exclusivity is released when either runs.
func (r *PortfolioRepository) BeginTransaction(ctx context.Context) (*PortfolioTx, error) {
	r.writer.Lock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.writer.Unlock()
		return nil, fmt.Errorf("failed to begin portfolio transaction: %w", err)
	}

	return &PortfolioTx{tx: tx, repo: r}, nil
}

// InsertTrades writes trades into the working copy.
func (t *PortfolioTx) InsertTrades(ctx context.Context, trades []model.Trade) error {
	if t.done {
		return apperrors.ErrNoOpenTransaction
	}

	query := `
		INSERT INTO trade (id, user_id, ticker, quantity, price, traded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	for _, trade := range trades {
		_, err := t.tx.ExecContext(ctx, query,
			trade.ID,
			trade.UserID,
			trade.Ticker,
			trade.Quantity.String(),
			trade.Price.String(),
			trade.TradedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	return nil
}

// DeleteUserPortfolio removes all of an investor's trades from the working copy.
func (t *PortfolioTx) DeleteUserPortfolio(ctx context.Context, userID string) error {
	if t.done {
		return apperrors.ErrNoOpenTransaction
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM trade WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete user portfolio: %w", err)
	}

	return nil
}

// MaterializedPositions aggregates the working copy into positions for one
// investor: per-ticker total quantity and quantity-weighted average cost.
func (t *PortfolioTx) MaterializedPositions(ctx context.Context, userID string) ([]model.Position, error) {
	if t.done {
		return nil, apperrors.ErrNoOpenTransaction
	}
	return materializePositions(ctx, t.tx, userID)
}

// Commit atomically publishes the working copy and releases exclusivity.
func (t *PortfolioTx) Commit() error {
	if t.done {
		return apperrors.ErrNoOpenTransaction
	}
	t.done = true
	defer t.repo.writer.Unlock()

	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit portfolio transaction: %w", err)
	}

	return nil
}

// Rollback discards the working copy and releases exclusivity.
func (t *PortfolioTx) Rollback() error {
	if t.done {
		return apperrors.ErrNoOpenTransaction
	}
	t.done = true
	defer t.repo.writer.Unlock()

	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back portfolio transaction: %w", err)
	}

	return nil
}

// GetCurrentPositions reads the committed store. Safe to call without an open
// transaction; never observes an uncommitted working copy.
func (r *PortfolioRepository) GetCurrentPositions(ctx context.Context, userID string) ([]model.Position, error) {
	return materializePositions(ctx, r.db, userID)
}

// GetUsersHoldingTicker returns the IDs of investors with a positive committed
// quantity in the ticker.
func (r *PortfolioRepository) GetUsersHoldingTicker(ctx context.Context, ticker string) ([]string, error) {
	query := `
		SELECT user_id, quantity FROM trade
		WHERE ticker = ?
		ORDER BY user_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade table: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var userID, qtyStr string
		if err := rows.Scan(&userID, &qtyStr); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		qty, err := ParseDecimal(qtyStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		totals[userID] = totals[userID].Add(qty)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade table: %w", err)
	}

	var users []string
	for userID, total := range totals {
		if total.IsPositive() {
			users = append(users, userID)
		}
	}
	sort.Strings(users)

	return users, nil
}

// UpdatePortfolioYieldMetrics upserts the per-investor yield pair for a ticker.
func (r *PortfolioRepository) UpdatePortfolioYieldMetrics(ctx context.Context, userID, ticker string, trailing, forward *decimal.Decimal) error {
	query := `
		INSERT INTO portfolio_yield_metric (user_id, ticker, trailing_yield, forward_yield, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, ticker) DO UPDATE SET
			trailing_yield = excluded.trailing_yield,
			forward_yield = excluded.forward_yield,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query, userID, ticker, NullDecimalString(trailing), NullDecimalString(forward))
	if err != nil {
		return fmt.Errorf("failed to upsert portfolio yield metrics: %w", err)
	}

	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// materializePositions folds an investor's trades into per-ticker positions.
// Aggregation happens in Go with decimal arithmetic so the weighted average
// cost keeps its fixed-point exactness.
func materializePositions(ctx context.Context, q querier, userID string) ([]model.Position, error) {
	query := `
		SELECT ticker, quantity, price FROM trade
		WHERE user_id = ?
		ORDER BY ticker ASC, traded_at ASC
	`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade table: %w", err)
	}
	defer rows.Close()

	type accumulator struct {
		quantity decimal.Decimal
		cost     decimal.Decimal
	}

	totals := make(map[string]*accumulator)
	var order []string

	for rows.Next() {
		var ticker, qtyStr, priceStr string
		if err := rows.Scan(&ticker, &qtyStr, &priceStr); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}

		qty, err := ParseDecimal(qtyStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		price, err := ParseDecimal(priceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}

		acc, ok := totals[ticker]
		if !ok {
			acc = &accumulator{}
			totals[ticker] = acc
			order = append(order, ticker)
		}
		acc.quantity = acc.quantity.Add(qty)
		acc.cost = acc.cost.Add(qty.Mul(price))
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade table: %w", err)
	}

	positions := make([]model.Position, 0, len(order))
	for _, ticker := range order {
		acc := totals[ticker]
		if !acc.quantity.IsPositive() {
			continue
		}
		positions = append(positions, model.Position{
			Ticker:   ticker,
			Quantity: acc.quantity,
			AvgCost:  acc.cost.Div(acc.quantity).Round(model.GrossDecimals),
		})
	}

	return positions, nil
}
