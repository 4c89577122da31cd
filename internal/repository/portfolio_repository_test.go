package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/repository"
	"github.com/fibratrack/fibratrack-backend/internal/testutil"
)

func makeTrade(t *testing.T, userID, ticker, quantity, price string) model.Trade {
	t.Helper()
	return model.Trade{
		ID:       testutil.MakeID(),
		UserID:   userID,
		Ticker:   ticker,
		Quantity: testutil.MustDecimal(t, quantity),
		Price:    testutil.MustDecimal(t, price),
		TradedAt: time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC),
	}
}

// TestPortfolioTransaction tests the explicit transaction handle.
//
// WHY: a portfolio replace is delete-then-insert; readers must never observe
// the store between those two steps, and a finished handle must refuse reuse.
func TestPortfolioTransaction(t *testing.T) {
	t.Run("commit publishes the working copy", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		repo := repository.NewPortfolioRepository(db)
		userID := testutil.MakeID()

		tx, err := repo.BeginTransaction(ctx)
		if err != nil {
			t.Fatalf("BeginTransaction failed: %v", err)
		}

		// Execute
		err = tx.InsertTrades(ctx, []model.Trade{makeTrade(t, userID, "FUNO11", "10", "100")})
		if err != nil {
			t.Fatalf("InsertTrades failed: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}

		// Assert
		positions, err := repo.GetCurrentPositions(ctx, userID)
		if err != nil {
			t.Fatalf("GetCurrentPositions failed: %v", err)
		}
		if len(positions) != 1 || positions[0].Ticker != "FUNO11" {
			t.Errorf("Expected committed FUNO11 position, got %+v", positions)
		}
	})

	t.Run("rollback discards the working copy", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		repo := repository.NewPortfolioRepository(db)
		userID := testutil.MakeID()
		testutil.NewTrade(userID, "FUNO11").Build(t, db)

		tx, err := repo.BeginTransaction(ctx)
		if err != nil {
			t.Fatalf("BeginTransaction failed: %v", err)
		}

		// Execute
		if err := tx.DeleteUserPortfolio(ctx, userID); err != nil {
			t.Fatalf("DeleteUserPortfolio failed: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}

		// Assert
		positions, err := repo.GetCurrentPositions(ctx, userID)
		if err != nil {
			t.Fatalf("GetCurrentPositions failed: %v", err)
		}
		if len(positions) != 1 {
			t.Errorf("Expected the rolled back delete to leave the position, got %+v", positions)
		}
	})

	t.Run("finished handles refuse reuse", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		repo := repository.NewPortfolioRepository(db)

		tx, err := repo.BeginTransaction(ctx)
		if err != nil {
			t.Fatalf("BeginTransaction failed: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}

		// Execute / Assert
		if err := tx.InsertTrades(ctx, nil); !errors.Is(err, apperrors.ErrNoOpenTransaction) {
			t.Errorf("Expected ErrNoOpenTransaction from InsertTrades, got %v", err)
		}
		if err := tx.Commit(); !errors.Is(err, apperrors.ErrNoOpenTransaction) {
			t.Errorf("Expected ErrNoOpenTransaction from second Commit, got %v", err)
		}
		if err := tx.Rollback(); !errors.Is(err, apperrors.ErrNoOpenTransaction) {
			t.Errorf("Expected ErrNoOpenTransaction from Rollback, got %v", err)
		}
	})

	t.Run("working copy stays invisible until commit", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		repo := repository.NewPortfolioRepository(db)
		userID := testutil.MakeID()

		tx, err := repo.BeginTransaction(ctx)
		if err != nil {
			t.Fatalf("BeginTransaction failed: %v", err)
		}

		// Execute
		err = tx.InsertTrades(ctx, []model.Trade{makeTrade(t, userID, "FUNO11", "10", "100")})
		if err != nil {
			t.Fatalf("InsertTrades failed: %v", err)
		}

		// The working copy is visible through the handle.
		staged, err := tx.MaterializedPositions(ctx, userID)
		if err != nil {
			t.Fatalf("MaterializedPositions failed: %v", err)
		}
		if len(staged) != 1 {
			t.Errorf("Expected the handle to see the staged trade, got %+v", staged)
		}

		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}

		// Assert
		positions, err := repo.GetCurrentPositions(ctx, userID)
		if err != nil {
			t.Fatalf("GetCurrentPositions failed: %v", err)
		}
		if len(positions) != 0 {
			t.Errorf("Expected no committed positions, got %+v", positions)
		}
	})
}

// TestGetCurrentPositions tests trade aggregation into positions.
func TestGetCurrentPositions(t *testing.T) {
	t.Run("computes the quantity-weighted average cost", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		repo := repository.NewPortfolioRepository(db)
		userID := testutil.MakeID()

		testutil.NewTrade(userID, "FUNO11").WithQuantity("10").WithPrice("100").Build(t, db)
		testutil.NewTrade(userID, "FUNO11").WithQuantity("10").WithPrice("120").
			WithTradedAt(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)).Build(t, db)

		// Execute
		positions, err := repo.GetCurrentPositions(ctx, userID)

		// Assert
		if err != nil {
			t.Fatalf("GetCurrentPositions failed: %v", err)
		}
		if len(positions) != 1 {
			t.Fatalf("Expected 1 position, got %d", len(positions))
		}
		if !positions[0].Quantity.Equal(testutil.MustDecimal(t, "20")) {
			t.Errorf("Expected quantity 20, got %s", positions[0].Quantity)
		}
		if !positions[0].AvgCost.Equal(testutil.MustDecimal(t, "110")) {
			t.Errorf("Expected average cost 110, got %s", positions[0].AvgCost)
		}
	})

	t.Run("drops tickers with non-positive net quantity", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		repo := repository.NewPortfolioRepository(db)
		userID := testutil.MakeID()

		testutil.NewTrade(userID, "FUNO11").WithQuantity("10").WithPrice("100").Build(t, db)
		testutil.NewTrade(userID, "FUNO11").WithQuantity("-10").WithPrice("110").
			WithTradedAt(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)).Build(t, db)
		testutil.NewTrade(userID, "DANHOS13").WithQuantity("5").WithPrice("30").Build(t, db)

		// Execute
		positions, err := repo.GetCurrentPositions(ctx, userID)

		// Assert
		if err != nil {
			t.Fatalf("GetCurrentPositions failed: %v", err)
		}
		if len(positions) != 1 || positions[0].Ticker != "DANHOS13" {
			t.Errorf("Expected only the DANHOS13 position, got %+v", positions)
		}
	})

	t.Run("isolates users", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		ctx := context.Background()
		repo := repository.NewPortfolioRepository(db)
		userID := testutil.MakeID()
		otherID := testutil.MakeID()

		testutil.NewTrade(userID, "FUNO11").Build(t, db)
		testutil.NewTrade(otherID, "DANHOS13").Build(t, db)

		// Execute
		positions, err := repo.GetCurrentPositions(ctx, userID)

		// Assert
		if err != nil {
			t.Fatalf("GetCurrentPositions failed: %v", err)
		}
		if len(positions) != 1 || positions[0].Ticker != "FUNO11" {
			t.Errorf("Expected only the user's own position, got %+v", positions)
		}
	})
}

// TestGetUsersHoldingTicker tests the holder lookup behind recalculation
// fan-out.
func TestGetUsersHoldingTicker(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := repository.NewPortfolioRepository(db)

	holder := testutil.MakeID()
	exited := testutil.MakeID()
	other := testutil.MakeID()

	testutil.NewTrade(holder, "FUNO11").WithQuantity("10").Build(t, db)
	testutil.NewTrade(exited, "FUNO11").WithQuantity("10").Build(t, db)
	testutil.NewTrade(exited, "FUNO11").WithQuantity("-10").
		WithTradedAt(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)).Build(t, db)
	testutil.NewTrade(other, "DANHOS13").Build(t, db)

	// Execute
	users, err := repo.GetUsersHoldingTicker(ctx, "FUNO11")

	// Assert
	if err != nil {
		t.Fatalf("GetUsersHoldingTicker failed: %v", err)
	}
	if len(users) != 1 || users[0] != holder {
		t.Errorf("Expected only the active holder, got %v", users)
	}
}
