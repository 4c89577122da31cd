package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/repository"
	"github.com/fibratrack/fibratrack-backend/internal/testutil"
)

// TestGetSecurity tests reading one catalog row.
func TestGetSecurity(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := repository.NewSecurityRepository(db)

	testutil.NewSecurity().WithTicker("FUNO11").
		WithName("Fibra Uno").
		WithLastPrice("27.50").
		WithYields("0.08", "0.09").
		Build(t, db)

	t.Run("returns the full catalog row", func(t *testing.T) {
		sec, err := repo.GetSecurity(ctx, "FUNO11")
		if err != nil {
			t.Fatalf("GetSecurity failed: %v", err)
		}
		if sec.Name != "Fibra Uno" || sec.Currency != "MXN" {
			t.Errorf("Expected Fibra Uno/MXN, got %s/%s", sec.Name, sec.Currency)
		}
		if sec.LastPrice == nil || !sec.LastPrice.Equal(testutil.MustDecimal(t, "27.50")) {
			t.Errorf("Expected last price 27.50, got %v", sec.LastPrice)
		}
		if sec.TrailingYield == nil || !sec.TrailingYield.Equal(testutil.MustDecimal(t, "0.08")) {
			t.Errorf("Expected trailing yield 0.08, got %v", sec.TrailingYield)
		}
	})

	t.Run("keeps unpriced rows nullable", func(t *testing.T) {
		ticker := testutil.NewSecurity().Build(t, db)

		sec, err := repo.GetSecurity(ctx, ticker)
		if err != nil {
			t.Fatalf("GetSecurity failed: %v", err)
		}
		if sec.LastPrice != nil || sec.TrailingYield != nil || sec.ForwardYield != nil {
			t.Error("Expected nil price and yields for a fresh security")
		}
	})

	t.Run("unknown tickers return a sentinel", func(t *testing.T) {
		_, err := repo.GetSecurity(ctx, "FNOVA17")
		if !errors.Is(err, apperrors.ErrSecurityNotFound) {
			t.Errorf("Expected ErrSecurityNotFound, got %v", err)
		}
	})
}

// TestSetLastPrice tests recording a last traded price.
func TestSetLastPrice(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := repository.NewSecurityRepository(db)

	testutil.NewSecurity().WithTicker("FUNO11").WithLastPrice("27.50").Build(t, db)

	t.Run("overwrites the stored price", func(t *testing.T) {
		// Execute
		if err := repo.SetLastPrice(ctx, "FUNO11", testutil.MustDecimal(t, "28.10")); err != nil {
			t.Fatalf("SetLastPrice failed: %v", err)
		}

		// Assert
		price, err := repo.GetLastPrice(ctx, "FUNO11")
		if err != nil {
			t.Fatalf("GetLastPrice failed: %v", err)
		}
		if !price.Equal(testutil.MustDecimal(t, "28.10")) {
			t.Errorf("Expected 28.10, got %s", price)
		}
	})

	t.Run("unknown tickers return a sentinel", func(t *testing.T) {
		err := repo.SetLastPrice(ctx, "FNOVA17", testutil.MustDecimal(t, "10"))
		if !errors.Is(err, apperrors.ErrSecurityNotFound) {
			t.Errorf("Expected ErrSecurityNotFound, got %v", err)
		}
	})
}
