package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/model"
)

// DistributionRepository is the SQLite-backed distribution record store.
type DistributionRepository struct {
	db *sql.DB
}

// NewDistributionRepository creates a new repository instance.
func NewDistributionRepository(db *sql.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

const distributionColumns = `id, ticker, pay_date, ex_date, gross_per_cbfi, currency,
	type, source, confidence, status, period_tag, created_at, updated_at`

// GetActiveTickers returns all tickers known to the security catalog,
// in stable order.
func (r *DistributionRepository) GetActiveTickers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker FROM security ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query security table: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, ticker)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security table: %w", err)
	}

	return tickers, nil
}

// Exists reports whether a distribution with the same ticker, pay date and
// gross amount is already stored. Used as the import duplicate guard.
func (r *DistributionRepository) Exists(ctx context.Context, ticker string, payDate time.Time, amount decimal.Decimal) (bool, error) {
	query := `
		SELECT COUNT(*) FROM distribution
		WHERE ticker = ? AND pay_date = ? AND gross_per_cbfi = ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, query,
		ticker,
		payDate.UTC().Format("2006-01-02"),
		amount.Round(model.GrossDecimals).String(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check distribution existence: %w", err)
	}

	return count > 0, nil
}

// Insert stores a new distribution record. The gross amount is rounded to six
// decimals on every write.
func (r *DistributionRepository) Insert(ctx context.Context, rec model.DistributionRecord) error {
	query := `
		INSERT INTO distribution (` + distributionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Ticker,
		rec.PayDate.UTC().Format("2006-01-02"),
		NullTimeString(rec.ExDate),
		rec.GrossPerCBFI.Round(model.GrossDecimals).String(),
		rec.Currency,
		string(rec.Type),
		rec.Source,
		rec.Confidence,
		string(rec.Status),
		rec.PeriodTag,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert distribution: %w", err)
	}

	return nil
}

// Update overwrites an existing distribution record by ID.
func (r *DistributionRepository) Update(ctx context.Context, rec model.DistributionRecord) error {
	query := `
		UPDATE distribution
		SET pay_date = ?, ex_date = ?, gross_per_cbfi = ?, currency = ?, type = ?,
		    source = ?, confidence = ?, status = ?, period_tag = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.PayDate.UTC().Format("2006-01-02"),
		NullTimeString(rec.ExDate),
		rec.GrossPerCBFI.Round(model.GrossDecimals).String(),
		rec.Currency,
		string(rec.Type),
		rec.Source,
		rec.Confidence,
		string(rec.Status),
		rec.PeriodTag,
		rec.UpdatedAt.UTC().Format(time.RFC3339),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update distribution: %w", err)
	}

	return nil
}

// GetByStatus returns all distribution records in the given status, ordered by
// ticker and pay date so callers can group per security.
func (r *DistributionRepository) GetByStatus(ctx context.Context, status model.DistributionStatus) ([]model.DistributionRecord, error) {
	query := `
		SELECT ` + distributionColumns + `
		FROM distribution
		WHERE status = ?
		ORDER BY ticker ASC, pay_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution table: %w", err)
	}
	defer rows.Close()

	return scanDistributions(rows)
}

// GetVerifiedSince returns verified distributions for the ticker whose pay
// date falls on or after fromDate, ordered by pay date ascending.
func (r *DistributionRepository) GetVerifiedSince(ctx context.Context, ticker string, fromDate time.Time) ([]model.DistributionRecord, error) {
	query := `
		SELECT ` + distributionColumns + `
		FROM distribution
		WHERE ticker = ? AND status = ? AND pay_date >= ?
		ORDER BY pay_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query,
		ticker,
		string(model.DistributionVerified),
		fromDate.UTC().Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution table: %w", err)
	}
	defer rows.Close()

	return scanDistributions(rows)
}

// SetYields upserts the portfolio-level yield pair for a ticker. Nil values
// are stored as NULL, meaning the yield is not derivable from current data.
func (r *DistributionRepository) SetYields(ctx context.Context, ticker string, trailing, forward *decimal.Decimal) error {
	query := `
		INSERT INTO distribution_yield (ticker, trailing_yield, forward_yield, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ticker) DO UPDATE SET
			trailing_yield = excluded.trailing_yield,
			forward_yield = excluded.forward_yield,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query, ticker, NullDecimalString(trailing), NullDecimalString(forward))
	if err != nil {
		return fmt.Errorf("failed to upsert distribution yields: %w", err)
	}

	return nil
}

func scanDistributions(rows *sql.Rows) ([]model.DistributionRecord, error) {
	var records []model.DistributionRecord

	for rows.Next() {
		var rec model.DistributionRecord
		var payDateStr, grossStr, typeStr, statusStr, createdAtStr, updatedAtStr string
		var exDateStr, periodTag sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.Ticker,
			&payDateStr,
			&exDateStr,
			&grossStr,
			&rec.Currency,
			&typeStr,
			&rec.Source,
			&rec.Confidence,
			&statusStr,
			&periodTag,
			&createdAtStr,
			&updatedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan distribution row: %w", err)
		}

		rec.PayDate, err = ParseTime(payDateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse pay_date: %w", err)
		}

		// ExDate is nullable
		if exDateStr.Valid {
			exDate, err := ParseTime(exDateStr.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse ex_date: %w", err)
			}
			rec.ExDate = &exDate
		}

		rec.GrossPerCBFI, err = ParseDecimal(grossStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse gross_per_cbfi: %w", err)
		}

		rec.Type = model.DistributionType(typeStr)
		rec.Status = model.DistributionStatus(statusStr)
		if periodTag.Valid {
			rec.PeriodTag = periodTag.String
		}

		rec.CreatedAt, err = ParseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		rec.UpdatedAt, err = ParseTime(updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distribution table: %w", err)
	}

	return records, nil
}
