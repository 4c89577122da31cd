package service

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/repository"
)

// CatalogService serves the security catalog surface: ticker lookups and
// last-price updates. A price update fans a price-reason recalculation out to
// every investor currently holding the ticker.
type CatalogService struct {
	securityRepo  *repository.SecurityRepository
	portfolioRepo *repository.PortfolioRepository
	scheduler     JobScheduler
	clock         Clock
}

// NewCatalogService creates a new CatalogService with the provided dependencies.
func NewCatalogService(
	securityRepo *repository.SecurityRepository,
	portfolioRepo *repository.PortfolioRepository,
	scheduler JobScheduler,
	clock Clock,
) *CatalogService {
	return &CatalogService{
		securityRepo:  securityRepo,
		portfolioRepo: portfolioRepo,
		scheduler:     scheduler,
		clock:         clock,
	}
}

// GetSecurity returns the catalog row for a ticker.
func (s *CatalogService) GetSecurity(ctx context.Context, ticker string) (model.Security, error) {
	return s.securityRepo.GetSecurity(ctx, ticker)
}

// UpdateLastPrice records a new last traded price for the ticker and enqueues
// a price-reason recalculation for every current holder. An enqueue failure
// is logged and does not fail the update; the nightly run catches up. Returns
// the number of recalculations queued.
func (s *CatalogService) UpdateLastPrice(ctx context.Context, ticker string, price decimal.Decimal) (int, error) {
	if err := s.securityRepo.SetLastPrice(ctx, ticker, price); err != nil {
		return 0, err
	}

	holders, err := s.portfolioRepo.GetUsersHoldingTicker(ctx, ticker)
	if err != nil {
		return 0, err
	}

	now := s.clock.UTCNow()
	queued := 0
	for _, userID := range holders {
		if err := s.scheduler.EnqueuePortfolioRecalc(userID, model.ReasonPrice, now); err != nil {
			log.Printf("failed to enqueue recalculation for user %s: %v", userID, err)
			continue
		}
		queued++
	}

	return queued, nil
}
