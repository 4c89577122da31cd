package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/repository"
)

// ImportService ingests unverified distribution rows and replaces investor
// portfolios. Imported distributions stay in imported state until the next
// reconciliation run upgrades them.
type ImportService struct {
	distributionRepo *repository.DistributionRepository
	portfolioRepo    *repository.PortfolioRepository
	scheduler        JobScheduler
	clock            Clock
}

// NewImportService creates a new ImportService with the provided dependencies.
func NewImportService(
	distributionRepo *repository.DistributionRepository,
	portfolioRepo *repository.PortfolioRepository,
	scheduler JobScheduler,
	clock Clock,
) *ImportService {
	return &ImportService{
		distributionRepo: distributionRepo,
		portfolioRepo:    portfolioRepo,
		scheduler:        scheduler,
		clock:            clock,
	}
}

// DistributionImport is one unverified distribution row as supplied by an
// import feed.
type DistributionImport struct {
	Ticker       string
	PayDate      time.Time
	ExDate       *time.Time
	GrossPerCBFI decimal.Decimal
	Currency     string
	Type         string
	Source       string
	Confidence   float64
}

// ImportDistributions inserts the given rows as imported records. Rows that
// already exist for the same (ticker, pay date, amount) are skipped. Returns
// the number of rows inserted.
func (s *ImportService) ImportDistributions(ctx context.Context, imports []DistributionImport) (int, error) {
	now := s.clock.UTCNow()
	inserted := 0

	for _, row := range imports {
		exists, err := s.distributionRepo.Exists(ctx, row.Ticker, row.PayDate, row.GrossPerCBFI)
		if err != nil {
			return inserted, fmt.Errorf("failed to check for duplicate distribution: %w", err)
		}
		if exists {
			continue
		}

		currency := row.Currency
		if currency == "" {
			currency = "MXN"
		}

		rec := model.DistributionRecord{
			ID:           uuid.New().String(),
			Ticker:       row.Ticker,
			PayDate:      row.PayDate,
			ExDate:       row.ExDate,
			GrossPerCBFI: row.GrossPerCBFI.Round(model.GrossDecimals),
			Currency:     currency,
			Type:         model.NormalizeDistributionType(row.Type),
			Source:       row.Source,
			Confidence:   row.Confidence,
			Status:       model.DistributionImported,
			PeriodTag:    PeriodTag(row.PayDate),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.distributionRepo.Insert(ctx, rec); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}

// ReplacePortfolio atomically swaps an investor's trades for the supplied set
// and enqueues an upload recalculation. The whole replace happens inside one
// store transaction; any failure rolls back and leaves the committed
// portfolio untouched. Returns the materialized positions after the replace.
func (s *ImportService) ReplacePortfolio(ctx context.Context, userID string, trades []model.Trade) ([]model.Position, error) {
	tx, err := s.portfolioRepo.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}

	if err := tx.DeleteUserPortfolio(ctx, userID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.InsertTrades(ctx, trades); err != nil {
		tx.Rollback()
		return nil, err
	}

	positions, err := tx.MaterializedPositions(ctx, userID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := s.scheduler.EnqueuePortfolioRecalc(userID, model.ReasonUpload, s.clock.UTCNow()); err != nil {
		log.Printf("failed to enqueue upload recalculation for user %s: %v", userID, err)
	}

	return positions, nil
}
