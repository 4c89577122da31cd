package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/model"
)

// Job-run, dead-letter, metrics and history persistence for the portfolio
// store. These methods are non-transactional reads/writes: job-run records in
// particular must be visible to concurrent observers while a recalculation is
// still running.

const metricsColumns = `invested_capital, market_value, profit_loss, trailing_yield,
	forward_yield, twr, mwr, twr_annualized, mwr_annualized, position_count, calculated_at`

// GetJobRun returns the most recent job run for the idempotency key
// (userID, reason, executionDate). Returns apperrors.ErrJobRunNotFound when
// no run exists for the key.
func (r *PortfolioRepository) GetJobRun(ctx context.Context, userID string, reason model.RecalcReason, executionDate time.Time) (model.JobRunRecord, error) {
	query := `
		SELECT id, user_id, reason, execution_date, status, positions_processed,
		       duration_ms, error_message, created_at, updated_at
		FROM job_run
		WHERE user_id = ? AND reason = ? AND execution_date = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var rec model.JobRunRecord
	var reasonStr, executionDateStr, statusStr, createdAtStr, updatedAtStr string
	var durationMs int64
	var errorMessage sql.NullString

	err := r.db.QueryRowContext(ctx, query,
		userID,
		string(reason),
		executionDate.UTC().Format("2006-01-02"),
	).Scan(
		&rec.ID,
		&rec.UserID,
		&reasonStr,
		&executionDateStr,
		&statusStr,
		&rec.PositionsProcessed,
		&durationMs,
		&errorMessage,
		&createdAtStr,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JobRunRecord{}, apperrors.ErrJobRunNotFound
	}
	if err != nil {
		return model.JobRunRecord{}, fmt.Errorf("failed to query job_run table: %w", err)
	}

	rec.Reason = model.RecalcReason(reasonStr)
	rec.Status = model.JobStatus(statusStr)
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	if errorMessage.Valid {
		rec.ErrorMessage = errorMessage.String
	}

	if rec.ExecutionDate, err = ParseTime(executionDateStr); err != nil {
		return model.JobRunRecord{}, fmt.Errorf("failed to parse execution_date: %w", err)
	}
	if rec.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return model.JobRunRecord{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = ParseTime(updatedAtStr); err != nil {
		return model.JobRunRecord{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return rec, nil
}

// InsertJobRun writes a new job-run record.
func (r *PortfolioRepository) InsertJobRun(ctx context.Context, rec model.JobRunRecord) error {
	query := `
		INSERT INTO job_run (id, user_id, reason, execution_date, status,
		                     positions_processed, duration_ms, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		string(rec.Reason),
		rec.ExecutionDate.UTC().Format("2006-01-02"),
		string(rec.Status),
		rec.PositionsProcessed,
		rec.Duration.Milliseconds(),
		nullString(rec.ErrorMessage),
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job run: %w", err)
	}

	return nil
}

// UpdateJobRun overwrites the mutable fields of an existing job-run record.
func (r *PortfolioRepository) UpdateJobRun(ctx context.Context, rec model.JobRunRecord) error {
	query := `
		UPDATE job_run
		SET status = ?, positions_processed = ?, duration_ms = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		string(rec.Status),
		rec.PositionsProcessed,
		rec.Duration.Milliseconds(),
		nullString(rec.ErrorMessage),
		rec.UpdatedAt.UTC().Format(time.RFC3339),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job run: %w", err)
	}

	return nil
}

// InsertDeadLetter appends a terminal-failure audit entry. The engine never
// reads these back; they exist for manual inspection.
func (r *PortfolioRepository) InsertDeadLetter(ctx context.Context, rec model.JobDeadLetterRecord) error {
	query := `
		INSERT INTO job_dead_letter (id, job_id, user_id, reason, error_type, error_message, stack, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.JobID,
		rec.UserID,
		string(rec.Reason),
		rec.ErrorType,
		rec.ErrorMessage,
		nullString(rec.Stack),
		rec.FailedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}

	return nil
}

// SaveMetrics overwrites the investor's current metrics snapshot.
func (r *PortfolioRepository) SaveMetrics(ctx context.Context, m model.PortfolioMetrics) error {
	query := `
		INSERT INTO portfolio_metrics (user_id, ` + metricsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			invested_capital = excluded.invested_capital,
			market_value = excluded.market_value,
			profit_loss = excluded.profit_loss,
			trailing_yield = excluded.trailing_yield,
			forward_yield = excluded.forward_yield,
			twr = excluded.twr,
			mwr = excluded.mwr,
			twr_annualized = excluded.twr_annualized,
			mwr_annualized = excluded.mwr_annualized,
			position_count = excluded.position_count,
			calculated_at = excluded.calculated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		m.UserID,
		m.InvestedCapital.String(),
		m.MarketValue.String(),
		m.ProfitLoss.String(),
		NullDecimalString(m.TrailingYield),
		NullDecimalString(m.ForwardYield),
		nullFloat(m.TimeWeightedReturn),
		nullFloat(m.MoneyWeightedReturn),
		nullFloat(m.TWRAnnualized),
		nullFloat(m.MWRAnnualized),
		m.PositionCount,
		m.CalculatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save portfolio metrics: %w", err)
	}

	return nil
}

// AppendMetricsHistory appends the snapshot to the investor's history, keyed
// by the producing job and its reason.
func (r *PortfolioRepository) AppendMetricsHistory(ctx context.Context, id, jobID string, reason model.RecalcReason, m model.PortfolioMetrics) error {
	query := `
		INSERT INTO portfolio_metrics_history (id, job_id, user_id, reason, ` + metricsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		id,
		jobID,
		m.UserID,
		string(reason),
		m.InvestedCapital.String(),
		m.MarketValue.String(),
		m.ProfitLoss.String(),
		NullDecimalString(m.TrailingYield),
		NullDecimalString(m.ForwardYield),
		nullFloat(m.TimeWeightedReturn),
		nullFloat(m.MoneyWeightedReturn),
		nullFloat(m.TWRAnnualized),
		nullFloat(m.MWRAnnualized),
		m.PositionCount,
		m.CalculatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append metrics history: %w", err)
	}

	return nil
}

// GetMetrics returns the investor's current metrics snapshot.
func (r *PortfolioRepository) GetMetrics(ctx context.Context, userID string) (model.PortfolioMetrics, error) {
	query := `
		SELECT user_id, ` + metricsColumns + `
		FROM portfolio_metrics
		WHERE user_id = ?
	`

	var m model.PortfolioMetrics
	var investedStr, valueStr, pnlStr, calculatedAtStr string
	var trailing, forward sql.NullString
	var twr, mwr, twrAnn, mwrAnn sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&m.UserID,
		&investedStr,
		&valueStr,
		&pnlStr,
		&trailing,
		&forward,
		&twr,
		&mwr,
		&twrAnn,
		&mwrAnn,
		&m.PositionCount,
		&calculatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PortfolioMetrics{}, apperrors.ErrMetricsNotFound
	}
	if err != nil {
		return model.PortfolioMetrics{}, fmt.Errorf("failed to query portfolio_metrics: %w", err)
	}

	if m.InvestedCapital, err = ParseDecimal(investedStr); err != nil {
		return model.PortfolioMetrics{}, fmt.Errorf("failed to parse invested_capital: %w", err)
	}
	if m.MarketValue, err = ParseDecimal(valueStr); err != nil {
		return model.PortfolioMetrics{}, fmt.Errorf("failed to parse market_value: %w", err)
	}
	if m.ProfitLoss, err = ParseDecimal(pnlStr); err != nil {
		return model.PortfolioMetrics{}, fmt.Errorf("failed to parse profit_loss: %w", err)
	}
	if m.TrailingYield, err = ParseNullDecimal(trailing); err != nil {
		return model.PortfolioMetrics{}, fmt.Errorf("failed to parse trailing_yield: %w", err)
	}
	if m.ForwardYield, err = ParseNullDecimal(forward); err != nil {
		return model.PortfolioMetrics{}, fmt.Errorf("failed to parse forward_yield: %w", err)
	}

	m.TimeWeightedReturn = floatPtr(twr)
	m.MoneyWeightedReturn = floatPtr(mwr)
	m.TWRAnnualized = floatPtr(twrAnn)
	m.MWRAnnualized = floatPtr(mwrAnn)

	if m.CalculatedAt, err = ParseTime(calculatedAtStr); err != nil {
		return model.PortfolioMetrics{}, fmt.Errorf("failed to parse calculated_at: %w", err)
	}

	return m, nil
}

// GetValuationHistory returns the investor's valuation snapshots ordered by
// time ascending.
func (r *PortfolioRepository) GetValuationHistory(ctx context.Context, userID string) ([]model.ValuationSnapshot, error) {
	query := `
		SELECT as_of, value FROM portfolio_valuation
		WHERE user_id = ?
		ORDER BY as_of ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio_valuation: %w", err)
	}
	defer rows.Close()

	var snaps []model.ValuationSnapshot
	for rows.Next() {
		var asOfStr, valueStr string
		if err := rows.Scan(&asOfStr, &valueStr); err != nil {
			return nil, fmt.Errorf("failed to scan valuation row: %w", err)
		}

		var snap model.ValuationSnapshot
		if snap.AsOf, err = ParseTime(asOfStr); err != nil {
			return nil, fmt.Errorf("failed to parse as_of: %w", err)
		}
		if snap.Value, err = ParseDecimal(valueStr); err != nil {
			return nil, fmt.Errorf("failed to parse value: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio_valuation: %w", err)
	}

	return snaps, nil
}

// AppendValuationSnapshot appends one valuation point to the investor's history.
func (r *PortfolioRepository) AppendValuationSnapshot(ctx context.Context, id, userID string, snap model.ValuationSnapshot) error {
	query := `
		INSERT INTO portfolio_valuation (id, user_id, as_of, value)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, id, userID, snap.AsOf.UTC().Format(time.RFC3339), snap.Value.String())
	if err != nil {
		return fmt.Errorf("failed to append valuation snapshot: %w", err)
	}

	return nil
}

// GetCashflows returns the investor's external cashflows ordered by time
// ascending. Positive amounts are contributions, negative withdrawals.
func (r *PortfolioRepository) GetCashflows(ctx context.Context, userID string) ([]model.Cashflow, error) {
	query := `
		SELECT occurred_at, amount FROM portfolio_cashflow
		WHERE user_id = ?
		ORDER BY occurred_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio_cashflow: %w", err)
	}
	defer rows.Close()

	var flows []model.Cashflow
	for rows.Next() {
		var occurredAtStr, amountStr string
		if err := rows.Scan(&occurredAtStr, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan cashflow row: %w", err)
		}

		var flow model.Cashflow
		if flow.OccurredAt, err = ParseTime(occurredAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse occurred_at: %w", err)
		}
		if flow.Amount, err = ParseDecimal(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		flows = append(flows, flow)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio_cashflow: %w", err)
	}

	return flows, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
