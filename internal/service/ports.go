package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/model"
)

// OfficialDistributionSource fetches authoritative distribution events for a
// ticker in a window around the anchor date. The production implementation is
// officialsource.Client; tests substitute a stub.
type OfficialDistributionSource interface {
	GetDistributions(ctx context.Context, ticker string, anchor time.Time) ([]model.OfficialDistributionRecord, error)
}

// SecurityCatalog resolves last-traded prices and per-ticker yields.
// GetLastPrices may return apperrors.ErrBatchUnsupported, in which case the
// caller falls back to per-ticker GetLastPrice calls. Any other error from the
// batch call is a real failure and is propagated.
type SecurityCatalog interface {
	GetLastPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	GetLastPrices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)
	GetYields(ctx context.Context, ticker string) (model.SecurityYields, error)
	SetYields(ctx context.Context, ticker string, trailing, forward *decimal.Decimal) error
}

// JobScheduler enqueues downstream portfolio recalculations. Retry and backoff
// policy belong to the scheduler, not to the services that enqueue work.
type JobScheduler interface {
	EnqueuePortfolioRecalc(userID string, reason model.RecalcReason, requestedAt time.Time) error
}

// Clock supplies the current UTC time. Every timestamp written by the
// reconciler and the recalculation routine originates here so tests can pin
// time.
type Clock interface {
	UTCNow() time.Time
}
