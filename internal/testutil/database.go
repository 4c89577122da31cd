package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite" // Test Package
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// In-memory database (destroyed when connection closes)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = MEMORY", // Faster for tests
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to set pragma: %v", err)
		}
	}

	if err := createTestSchema(db); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestSchema creates all database tables for testing.
// Schema is synchronized with the production migrations.
func createTestSchema(db *sql.DB) error {
	schema := `
		-- Security table: one row per listed FIBRA
		CREATE TABLE security (
			ticker VARCHAR(12) NOT NULL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			currency VARCHAR(3) NOT NULL DEFAULT 'MXN',
			last_price TEXT,
			trailing_yield TEXT,
			forward_yield TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		-- Distribution events
		CREATE TABLE distribution (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			ticker VARCHAR(12) NOT NULL,
			pay_date DATE NOT NULL,
			ex_date DATE,
			gross_per_cbfi TEXT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			type VARCHAR(15) NOT NULL,
			source VARCHAR(50) NOT NULL,
			confidence FLOAT NOT NULL,
			status VARCHAR(10) NOT NULL,
			period_tag VARCHAR(10),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(ticker) REFERENCES security(ticker)
		);

		-- Portfolio-level yield store
		CREATE TABLE distribution_yield (
			ticker VARCHAR(12) NOT NULL PRIMARY KEY,
			trailing_yield TEXT,
			forward_yield TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(ticker) REFERENCES security(ticker)
		);

		-- Investor lots
		CREATE TABLE trade (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			ticker VARCHAR(12) NOT NULL,
			quantity TEXT NOT NULL,
			price TEXT NOT NULL,
			traded_at DATETIME NOT NULL,
			FOREIGN KEY(ticker) REFERENCES security(ticker)
		);

		-- Per-investor per-ticker yield metrics
		CREATE TABLE portfolio_yield_metric (
			user_id VARCHAR(36) NOT NULL,
			ticker VARCHAR(12) NOT NULL,
			trailing_yield TEXT,
			forward_yield TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, ticker)
		);

		-- Current metrics snapshot
		CREATE TABLE portfolio_metrics (
			user_id VARCHAR(36) NOT NULL PRIMARY KEY,
			invested_capital TEXT NOT NULL,
			market_value TEXT NOT NULL,
			profit_loss TEXT NOT NULL,
			trailing_yield TEXT,
			forward_yield TEXT,
			twr FLOAT,
			mwr FLOAT,
			twr_annualized FLOAT,
			mwr_annualized FLOAT,
			position_count INTEGER NOT NULL,
			calculated_at DATETIME NOT NULL
		);

		-- Append-only metrics history
		CREATE TABLE portfolio_metrics_history (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			job_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NOT NULL,
			reason VARCHAR(10) NOT NULL,
			invested_capital TEXT NOT NULL,
			market_value TEXT NOT NULL,
			profit_loss TEXT NOT NULL,
			trailing_yield TEXT,
			forward_yield TEXT,
			twr FLOAT,
			mwr FLOAT,
			twr_annualized FLOAT,
			mwr_annualized FLOAT,
			position_count INTEGER NOT NULL,
			calculated_at DATETIME NOT NULL
		);

		-- Valuation history
		CREATE TABLE portfolio_valuation (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			as_of DATETIME NOT NULL,
			value TEXT NOT NULL
		);

		-- External cashflows
		CREATE TABLE portfolio_cashflow (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			occurred_at DATETIME NOT NULL,
			amount TEXT NOT NULL
		);

		-- Job run audit/idempotency records
		CREATE TABLE job_run (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			reason VARCHAR(10) NOT NULL,
			execution_date DATE NOT NULL,
			status VARCHAR(10) NOT NULL,
			positions_processed INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		-- Dead letters
		CREATE TABLE job_dead_letter (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			job_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NOT NULL,
			reason VARCHAR(10) NOT NULL,
			error_type VARCHAR(100) NOT NULL,
			error_message TEXT NOT NULL,
			stack TEXT,
			failed_at DATETIME NOT NULL
		);

		-- System settings
		CREATE TABLE system_setting (
			key VARCHAR(50) NOT NULL PRIMARY KEY,
			value VARCHAR(500) NOT NULL,
			updated_at DATETIME
		);

		CREATE INDEX ix_distribution_ticker ON distribution(ticker);
		CREATE INDEX ix_distribution_status ON distribution(status);
		CREATE INDEX ix_trade_user_id ON trade(user_id);
		CREATE INDEX ix_job_run_key ON job_run(user_id, reason, execution_date);
	`

	_, err := db.Exec(schema)
	return err
}
