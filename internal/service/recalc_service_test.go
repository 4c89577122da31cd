package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/repository"
	"github.com/fibratrack/fibratrack-backend/internal/testutil"
)

// TestExecute_ComputesPortfolioMetrics tests the full recalculation of a
// two-position portfolio.
//
// WHY: this is the engine's core arithmetic; invested capital, market value
// and the weighted yield pair must come out exactly, with the documented
// rounding.
func TestExecute_ComputesPortfolioMetrics(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := testutil.NewTestRecalcService(t, db)

	testutil.NewSecurity().WithTicker("FUNO11").
		WithLastPrice("120").
		WithYields("0.06", "0.07").
		Build(t, db)
	testutil.NewSecurity().WithTicker("FIBRATC14").
		WithLastPrice("220").
		WithYields("0.05", "0.06").
		Build(t, db)

	userID := testutil.MakeID()
	testutil.NewTrade(userID, "FUNO11").WithQuantity("10").WithPrice("100").Build(t, db)
	testutil.NewTrade(userID, "FIBRATC14").WithQuantity("5").WithPrice("200").Build(t, db)

	// Execute
	outcome, err := svc.Execute(ctx, userID, model.ReasonPrice, testutil.TestClock.Now)

	// Assert
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if outcome != model.RecalcSuccess {
		t.Fatalf("Expected Success, got %s", outcome)
	}

	metrics, err := svc.GetMetrics(ctx, userID)
	if err != nil {
		t.Fatalf("GetMetrics failed: %v", err)
	}

	if !metrics.InvestedCapital.Equal(testutil.MustDecimal(t, "2000.00")) {
		t.Errorf("Expected invested capital 2000.00, got %s", metrics.InvestedCapital)
	}
	if !metrics.MarketValue.Equal(testutil.MustDecimal(t, "2300.00")) {
		t.Errorf("Expected market value 2300.00, got %s", metrics.MarketValue)
	}
	if !metrics.ProfitLoss.Equal(testutil.MustDecimal(t, "300.00")) {
		t.Errorf("Expected profit/loss 300.00, got %s", metrics.ProfitLoss)
	}
	if metrics.PositionCount != 2 {
		t.Errorf("Expected 2 positions, got %d", metrics.PositionCount)
	}

	// Weighted by market value: (0.06*1200 + 0.05*1100) / 2300 and
	// (0.07*1200 + 0.06*1100) / 2300, rounded to six decimals.
	if metrics.TrailingYield == nil || !metrics.TrailingYield.Equal(testutil.MustDecimal(t, "0.055217")) {
		t.Errorf("Expected trailing yield 0.055217, got %v", metrics.TrailingYield)
	}
	if metrics.ForwardYield == nil || !metrics.ForwardYield.Equal(testutil.MustDecimal(t, "0.065217")) {
		t.Errorf("Expected forward yield 0.065217, got %v", metrics.ForwardYield)
	}

	// A first run has a single valuation point, so returns are not computable.
	if metrics.TimeWeightedReturn != nil {
		t.Errorf("Expected nil TWR on first run, got %v", *metrics.TimeWeightedReturn)
	}
	if metrics.MoneyWeightedReturn != nil {
		t.Errorf("Expected nil MWR on first run, got %v", *metrics.MoneyWeightedReturn)
	}
}

// TestExecute_ComputesReturnsFromHistory tests that an existing valuation
// history feeds the return computations.
func TestExecute_ComputesReturnsFromHistory(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := testutil.NewTestRecalcService(t, db)

	testutil.NewSecurity().WithTicker("FUNO11").WithLastPrice("230").Build(t, db)

	userID := testutil.MakeID()
	testutil.NewTrade(userID, "FUNO11").WithQuantity("10").WithPrice("200").Build(t, db)

	// Prior snapshot: the portfolio was worth 2000 at the start of the year,
	// funded by a single contribution.
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	testutil.InsertValuation(t, db, userID, start, "2000")
	testutil.InsertCashflow(t, db, userID, start, "2000")

	// Execute
	outcome, err := svc.Execute(ctx, userID, model.ReasonPrice, testutil.TestClock.Now)

	// Assert
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if outcome != model.RecalcSuccess {
		t.Fatalf("Expected Success, got %s", outcome)
	}

	metrics, err := svc.GetMetrics(ctx, userID)
	if err != nil {
		t.Fatalf("GetMetrics failed: %v", err)
	}

	// 2000 -> 2300 with no external flows.
	if metrics.TimeWeightedReturn == nil {
		t.Fatal("Expected TWR, got nil")
	}
	if !approxEqual(*metrics.TimeWeightedReturn, 0.15, 1e-9) {
		t.Errorf("Expected TWR 0.15, got %v", *metrics.TimeWeightedReturn)
	}
	if metrics.TWRAnnualized == nil {
		t.Error("Expected annualized TWR, got nil")
	}
	if metrics.MoneyWeightedReturn == nil {
		t.Error("Expected MWR, got nil")
	}
}

// TestExecute_Idempotency tests the once-per-day guard.
//
// WHY: the scheduler retries and multiple triggers land on the same day; only
// upload runs may repeat, everything else must short-circuit into a Skipped
// audit record that preserves the prior position count.
func TestExecute_Idempotency(t *testing.T) {
	t.Run("skips a repeated run for the same reason and day", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		svc := testutil.NewTestRecalcService(t, db)

		testutil.NewSecurity().WithTicker("FUNO11").WithLastPrice("120").Build(t, db)
		userID := testutil.MakeID()
		testutil.NewTrade(userID, "FUNO11").Build(t, db)

		// Execute
		first, err := svc.Execute(ctx, userID, model.ReasonPrice, testutil.TestClock.Now)
		if err != nil {
			t.Fatalf("First execute failed: %v", err)
		}
		second, err := svc.Execute(ctx, userID, model.ReasonPrice, testutil.TestClock.Now)
		if err != nil {
			t.Fatalf("Second execute failed: %v", err)
		}

		// Assert
		if first != model.RecalcSuccess || second != model.RecalcSkipped {
			t.Errorf("Expected Success then Skipped, got %s then %s", first, second)
		}

		assertJobRunCounts(t, db, userID, map[model.JobStatus]int{
			model.JobSuccess: 1,
			model.JobSkipped: 1,
		})

		// The skipped record reports the prior run's position count.
		var positions int
		err = db.QueryRow(
			`SELECT positions_processed FROM job_run WHERE user_id = ? AND status = ?`,
			userID, string(model.JobSkipped),
		).Scan(&positions)
		if err != nil {
			t.Fatalf("Failed to load skipped run: %v", err)
		}
		if positions != 1 {
			t.Errorf("Expected skipped run to carry 1 position, got %d", positions)
		}
	})

	t.Run("always re-runs for uploads", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		svc := testutil.NewTestRecalcService(t, db)

		testutil.NewSecurity().WithTicker("FUNO11").WithLastPrice("120").Build(t, db)
		userID := testutil.MakeID()
		testutil.NewTrade(userID, "FUNO11").Build(t, db)

		// Execute
		first, err := svc.Execute(ctx, userID, model.ReasonUpload, testutil.TestClock.Now)
		if err != nil {
			t.Fatalf("First execute failed: %v", err)
		}
		second, err := svc.Execute(ctx, userID, model.ReasonUpload, testutil.TestClock.Now)
		if err != nil {
			t.Fatalf("Second execute failed: %v", err)
		}

		// Assert
		if first != model.RecalcSuccess || second != model.RecalcSuccess {
			t.Errorf("Expected Success twice, got %s then %s", first, second)
		}

		assertJobRunCounts(t, db, userID, map[model.JobStatus]int{
			model.JobSuccess: 2,
		})
	})

	t.Run("distinct reasons on the same day do not collide", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		svc := testutil.NewTestRecalcService(t, db)

		testutil.NewSecurity().WithTicker("FUNO11").WithLastPrice("120").Build(t, db)
		userID := testutil.MakeID()
		testutil.NewTrade(userID, "FUNO11").Build(t, db)

		// Execute
		first, err := svc.Execute(ctx, userID, model.ReasonPrice, testutil.TestClock.Now)
		if err != nil {
			t.Fatalf("Price execute failed: %v", err)
		}
		second, err := svc.Execute(ctx, userID, model.ReasonDividend, testutil.TestClock.Now)
		if err != nil {
			t.Fatalf("Dividend execute failed: %v", err)
		}

		// Assert
		if first != model.RecalcSuccess || second != model.RecalcSuccess {
			t.Errorf("Expected Success twice, got %s then %s", first, second)
		}
	})
}

// TestExecute_FailureWritesDeadLetter tests the failure path.
//
// WHY: a failed run must leave a Failed audit record and a dead letter with
// the error preserved, and still surface the error so the scheduler retries.
func TestExecute_FailureWritesDeadLetter(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := testutil.NewTestRecalcService(t, db)

	userID := testutil.MakeID()
	testutil.NewTrade(userID, "FUNO11").Build(t, db)

	// Sabotage the valuation history so the computation fails mid-run.
	if _, err := db.Exec(`DROP TABLE portfolio_valuation`); err != nil {
		t.Fatalf("Failed to drop table: %v", err)
	}

	// Execute
	outcome, err := svc.Execute(ctx, userID, model.ReasonPrice, testutil.TestClock.Now)

	// Assert
	if err == nil {
		t.Fatal("Expected an error, got nil")
	}
	if outcome != model.RecalcFailed {
		t.Errorf("Expected Failed, got %s", outcome)
	}

	assertJobRunCounts(t, db, userID, map[model.JobStatus]int{
		model.JobFailed: 1,
	})

	var errorMessage, stack string
	err = db.QueryRow(
		`SELECT error_message, stack FROM job_dead_letter WHERE user_id = ?`, userID,
	).Scan(&errorMessage, &stack)
	if err != nil {
		t.Fatalf("Failed to load dead letter: %v", err)
	}
	if errorMessage == "" {
		t.Error("Expected dead letter to preserve the error message")
	}
	if stack == "" {
		t.Error("Expected dead letter to carry a stack trace")
	}
}

// TestExecute_PriceResolutionFallback tests price resolution against a
// catalog whose batch lookup fails.
//
// WHY: a catalog without batch support must degrade to per-ticker reads with
// identical results, while any other batch failure aborts the whole run.
func TestExecute_PriceResolutionFallback(t *testing.T) {
	t.Run("falls back to per-ticker lookups when batch is unsupported", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		catalog := &testutil.BatchFailingCatalog{
			SecurityCatalog: repository.NewSecurityRepository(db),
			BatchErr:        apperrors.ErrBatchUnsupported,
		}
		svc := testutil.NewTestRecalcServiceWithCatalog(t, db, catalog)

		testutil.NewSecurity().WithTicker("FUNO11").WithLastPrice("120").Build(t, db)
		testutil.NewSecurity().WithTicker("FIBRATC14").WithLastPrice("220").Build(t, db)
		userID := testutil.MakeID()
		testutil.NewTrade(userID, "FUNO11").WithQuantity("10").WithPrice("100").Build(t, db)
		testutil.NewTrade(userID, "FIBRATC14").WithQuantity("5").WithPrice("200").Build(t, db)

		// Execute
		outcome, err := svc.Execute(ctx, userID, model.ReasonPrice, testutil.TestClock.Now)

		// Assert
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if outcome != model.RecalcSuccess {
			t.Fatalf("Expected Success, got %s", outcome)
		}

		// Per-ticker reads must price the portfolio exactly as a served batch
		// would have.
		metrics, err := svc.GetMetrics(ctx, userID)
		if err != nil {
			t.Fatalf("GetMetrics failed: %v", err)
		}
		if !metrics.MarketValue.Equal(testutil.MustDecimal(t, "2300.00")) {
			t.Errorf("Expected market value 2300.00, got %s", metrics.MarketValue)
		}
		if !metrics.ProfitLoss.Equal(testutil.MustDecimal(t, "300.00")) {
			t.Errorf("Expected profit/loss 300.00, got %s", metrics.ProfitLoss)
		}
	})

	t.Run("treats any other batch error as a run failure", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		catalog := &testutil.BatchFailingCatalog{
			SecurityCatalog: repository.NewSecurityRepository(db),
			BatchErr:        errors.New("price feed unavailable"),
		}
		svc := testutil.NewTestRecalcServiceWithCatalog(t, db, catalog)

		testutil.NewSecurity().WithTicker("FUNO11").WithLastPrice("120").Build(t, db)
		userID := testutil.MakeID()
		testutil.NewTrade(userID, "FUNO11").Build(t, db)

		// Execute
		outcome, err := svc.Execute(ctx, userID, model.ReasonPrice, testutil.TestClock.Now)

		// Assert
		if err == nil {
			t.Fatal("Expected an error, got nil")
		}
		if outcome != model.RecalcFailed {
			t.Errorf("Expected Failed, got %s", outcome)
		}

		assertJobRunCounts(t, db, userID, map[model.JobStatus]int{
			model.JobFailed: 1,
		})

		var deadLetters int
		if err := db.QueryRow(
			`SELECT COUNT(*) FROM job_dead_letter WHERE user_id = ?`, userID,
		).Scan(&deadLetters); err != nil {
			t.Fatalf("Failed to count dead letters: %v", err)
		}
		if deadLetters != 1 {
			t.Errorf("Expected 1 dead letter, got %d", deadLetters)
		}
	})
}

// TestExecute_MissingPriceValuesPositionAtZero tests the missing-price edge.
func TestExecute_MissingPriceValuesPositionAtZero(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := testutil.NewTestRecalcService(t, db)

	// Security exists but has never traded.
	testutil.NewSecurity().WithTicker("FPLUS16").Build(t, db)
	userID := testutil.MakeID()
	testutil.NewTrade(userID, "FPLUS16").WithQuantity("10").WithPrice("50").Build(t, db)

	// Execute
	outcome, err := svc.Execute(ctx, userID, model.ReasonPrice, testutil.TestClock.Now)

	// Assert
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if outcome != model.RecalcSuccess {
		t.Fatalf("Expected Success, got %s", outcome)
	}

	metrics, err := svc.GetMetrics(ctx, userID)
	if err != nil {
		t.Fatalf("GetMetrics failed: %v", err)
	}
	if !metrics.InvestedCapital.Equal(testutil.MustDecimal(t, "500.00")) {
		t.Errorf("Expected invested capital 500.00, got %s", metrics.InvestedCapital)
	}
	if !metrics.MarketValue.Equal(testutil.MustDecimal(t, "0.00")) {
		t.Errorf("Expected market value 0.00, got %s", metrics.MarketValue)
	}
	if !metrics.ProfitLoss.Equal(testutil.MustDecimal(t, "-500.00")) {
		t.Errorf("Expected profit/loss -500.00, got %s", metrics.ProfitLoss)
	}
}

// assertJobRunCounts checks the per-status job_run row counts for a user.
func assertJobRunCounts(t *testing.T, db *sql.DB, userID string, want map[model.JobStatus]int) {
	t.Helper()

	for status, expected := range want {
		var got int
		err := db.QueryRow(
			`SELECT COUNT(*) FROM job_run WHERE user_id = ? AND status = ?`,
			userID, string(status),
		).Scan(&got)
		if err != nil {
			t.Fatalf("Failed to count %s runs: %v", status, err)
		}
		if got != expected {
			t.Errorf("Expected %d %s runs, got %d", expected, status, got)
		}
	}
}
