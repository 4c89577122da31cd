package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/model"
)

// SecurityRepository provides data access for the security catalog: last
// traded prices and ticker-level yields.
type SecurityRepository struct {
	db *sql.DB
}

// NewSecurityRepository creates a new repository instance.
func NewSecurityRepository(db *sql.DB) *SecurityRepository {
	return &SecurityRepository{db: db}
}

// GetSecurity returns the catalog row for a ticker.
func (r *SecurityRepository) GetSecurity(ctx context.Context, ticker string) (model.Security, error) {
	query := `
		SELECT ticker, name, currency, last_price, trailing_yield, forward_yield, updated_at
		FROM security
		WHERE ticker = ?
	`

	var sec model.Security
	var lastPrice, trailing, forward sql.NullString
	var updatedAtStr string

	err := r.db.QueryRowContext(ctx, query, ticker).Scan(
		&sec.Ticker,
		&sec.Name,
		&sec.Currency,
		&lastPrice,
		&trailing,
		&forward,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Security{}, apperrors.ErrSecurityNotFound
	}
	if err != nil {
		return model.Security{}, fmt.Errorf("failed to query security: %w", err)
	}

	if sec.LastPrice, err = ParseNullDecimal(lastPrice); err != nil {
		return model.Security{}, fmt.Errorf("failed to parse last_price: %w", err)
	}
	if sec.TrailingYield, err = ParseNullDecimal(trailing); err != nil {
		return model.Security{}, fmt.Errorf("failed to parse trailing_yield: %w", err)
	}
	if sec.ForwardYield, err = ParseNullDecimal(forward); err != nil {
		return model.Security{}, fmt.Errorf("failed to parse forward_yield: %w", err)
	}

	sec.UpdatedAt, err = ParseTime(updatedAtStr)
	if err != nil {
		return model.Security{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return sec, nil
}

// GetLastPrice returns the last traded price for a ticker.
// Returns apperrors.ErrPriceNotFound when the catalog has no price yet.
func (r *SecurityRepository) GetLastPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	var lastPrice sql.NullString

	err := r.db.QueryRowContext(ctx, `SELECT last_price FROM security WHERE ticker = ?`, ticker).Scan(&lastPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, apperrors.ErrSecurityNotFound
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to query last price: %w", err)
	}
	if !lastPrice.Valid {
		return decimal.Decimal{}, apperrors.ErrPriceNotFound
	}

	price, err := ParseDecimal(lastPrice.String)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse last_price: %w", err)
	}

	return price, nil
}

// GetLastPrices returns last traded prices for the given tickers in one query.
// Tickers without a recorded price are omitted from the result.
func (r *SecurityRepository) GetLastPrices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(tickers))
	if len(tickers) == 0 {
		return prices, nil
	}

	placeholders := make([]string, len(tickers))
	args := make([]any, len(tickers))
	for i, ticker := range tickers {
		placeholders[i] = "?"
		args[i] = ticker
	}

	query := `
		SELECT ticker, last_price FROM security
		WHERE ticker IN (` + strings.Join(placeholders, ",") + `)
		AND last_price IS NOT NULL
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query last prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ticker, priceStr string
		if err := rows.Scan(&ticker, &priceStr); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		price, err := ParseDecimal(priceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_price: %w", err)
		}
		prices[ticker] = price
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price rows: %w", err)
	}

	return prices, nil
}

// GetYields returns the ticker-level trailing/forward yield pair.
// Unknown tickers yield a nil pair rather than an error: a missing catalog row
// simply contributes nothing to weighted portfolio yields.
func (r *SecurityRepository) GetYields(ctx context.Context, ticker string) (model.SecurityYields, error) {
	var trailing, forward sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT trailing_yield, forward_yield FROM security WHERE ticker = ?`, ticker,
	).Scan(&trailing, &forward)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SecurityYields{}, nil
	}
	if err != nil {
		return model.SecurityYields{}, fmt.Errorf("failed to query yields: %w", err)
	}

	var yields model.SecurityYields
	if yields.Trailing, err = ParseNullDecimal(trailing); err != nil {
		return model.SecurityYields{}, fmt.Errorf("failed to parse trailing_yield: %w", err)
	}
	if yields.Forward, err = ParseNullDecimal(forward); err != nil {
		return model.SecurityYields{}, fmt.Errorf("failed to parse forward_yield: %w", err)
	}

	return yields, nil
}

// SetYields writes the ticker-level yield pair. Nil stores NULL.
func (r *SecurityRepository) SetYields(ctx context.Context, ticker string, trailing, forward *decimal.Decimal) error {
	query := `
		UPDATE security
		SET trailing_yield = ?, forward_yield = ?, updated_at = CURRENT_TIMESTAMP
		WHERE ticker = ?
	`

	result, err := r.db.ExecContext(ctx, query, NullDecimalString(trailing), NullDecimalString(forward), ticker)
	if err != nil {
		return fmt.Errorf("failed to update security yields: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrSecurityNotFound
	}

	return nil
}

// SetLastPrice records the last traded price for a ticker.
func (r *SecurityRepository) SetLastPrice(ctx context.Context, ticker string, price decimal.Decimal) error {
	query := `
		UPDATE security
		SET last_price = ?, updated_at = CURRENT_TIMESTAMP
		WHERE ticker = ?
	`

	result, err := r.db.ExecContext(ctx, query, price.String(), ticker)
	if err != nil {
		return fmt.Errorf("failed to update last price: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrSecurityNotFound
	}

	return nil
}
