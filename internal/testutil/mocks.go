package testutil

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/service"
)

// MockOfficialSource is a stub implementation of the official distribution
// source port. It returns predefined records instead of calling the registry.
type MockOfficialSource struct {
	// Records maps ticker to the official records returned for it
	Records map[string][]model.OfficialDistributionRecord
	// Err is returned from every call when set
	Err error
	// ErrByTicker returns an error only for the named tickers
	ErrByTicker map[string]error
	// QueryCount tracks how many times GetDistributions was called
	QueryCount int
}

// GetDistributions returns the configured records for the ticker.
func (m *MockOfficialSource) GetDistributions(_ context.Context, ticker string, _ time.Time) ([]model.OfficialDistributionRecord, error) {
	m.QueryCount++
	if m.Err != nil {
		return nil, m.Err
	}
	if err, ok := m.ErrByTicker[ticker]; ok {
		return nil, err
	}
	return m.Records[ticker], nil
}

// BatchFailingCatalog wraps a real catalog and fails every batch price lookup
// with the configured error. Single-ticker reads pass through, so it drives
// the per-ticker fallback and the batch-failure path.
type BatchFailingCatalog struct {
	service.SecurityCatalog
	// BatchErr is returned from every GetLastPrices call
	BatchErr error
}

// GetLastPrices always fails with BatchErr.
func (c *BatchFailingCatalog) GetLastPrices(_ context.Context, _ []string) (map[string]decimal.Decimal, error) {
	return nil, c.BatchErr
}

// MockScheduler records enqueued recalculations instead of running them.
type MockScheduler struct {
	// Enqueued holds one entry per EnqueuePortfolioRecalc call
	Enqueued []EnqueuedRecalc
	// Err is returned from every call when set
	Err error
}

// EnqueuedRecalc is one recorded enqueue call.
type EnqueuedRecalc struct {
	UserID      string
	Reason      model.RecalcReason
	RequestedAt time.Time
}

// EnqueuePortfolioRecalc records the request.
func (m *MockScheduler) EnqueuePortfolioRecalc(userID string, reason model.RecalcReason, requestedAt time.Time) error {
	if m.Err != nil {
		return m.Err
	}
	m.Enqueued = append(m.Enqueued, EnqueuedRecalc{UserID: userID, Reason: reason, RequestedAt: requestedAt})
	return nil
}
