package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/repository"
)

// moneyDecimals is the scale for monetary outputs on the metrics snapshot.
const moneyDecimals = 2

// RecalcService materializes an investor's positions, resolves prices and
// yields, and persists a valuation/performance snapshot. Runs are idempotent
// per (user, reason, UTC calendar date); upload-triggered runs always execute.
type RecalcService struct {
	portfolioRepo *repository.PortfolioRepository
	catalog       SecurityCatalog
	clock         Clock
}

// NewRecalcService creates a new RecalcService with the provided dependencies.
func NewRecalcService(portfolioRepo *repository.PortfolioRepository, catalog SecurityCatalog, clock Clock) *RecalcService {
	return &RecalcService{
		portfolioRepo: portfolioRepo,
		catalog:       catalog,
		clock:         clock,
	}
}

// Execute runs one recalculation for the investor. For reasons other than
// upload, a prior non-Failed run on the same UTC calendar date short-circuits
// into a Skipped job-run record with zero duration. On failure a Failed
// job-run record and a dead letter are written best-effort and the original
// error is returned so the scheduler can retry.
func (s *RecalcService) Execute(ctx context.Context, userID string, reason model.RecalcReason, requestedAt time.Time) (model.RecalcOutcome, error) {
	executionDate := truncateToDay(requestedAt)
	now := s.clock.UTCNow()

	if reason != model.ReasonUpload {
		prior, err := s.portfolioRepo.GetJobRun(ctx, userID, reason, executionDate)
		if err != nil && !errors.Is(err, apperrors.ErrJobRunNotFound) {
			return model.RecalcFailed, err
		}
		if err == nil && prior.Status != model.JobFailed {
			skipped := model.JobRunRecord{
				ID:                 uuid.New().String(),
				UserID:             userID,
				Reason:             reason,
				ExecutionDate:      executionDate,
				Status:             model.JobSkipped,
				PositionsProcessed: prior.PositionsProcessed,
				Duration:           0,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := s.portfolioRepo.InsertJobRun(ctx, skipped); err != nil {
				return model.RecalcFailed, err
			}
			return model.RecalcSkipped, nil
		}
	}

	job := model.JobRunRecord{
		ID:            uuid.New().String(),
		UserID:        userID,
		Reason:        reason,
		ExecutionDate: executionDate,
		Status:        model.JobRunning,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.portfolioRepo.InsertJobRun(ctx, job); err != nil {
		return model.RecalcFailed, err
	}

	positions, err := s.recalculate(ctx, userID, job.ID, reason)
	if err != nil {
		s.recordFailure(ctx, job, err)
		return model.RecalcFailed, err
	}

	job.Status = model.JobSuccess
	job.PositionsProcessed = positions
	job.Duration = s.clock.UTCNow().Sub(now)
	job.UpdatedAt = s.clock.UTCNow()
	if err := s.portfolioRepo.UpdateJobRun(ctx, job); err != nil {
		return model.RecalcFailed, err
	}

	return model.RecalcSuccess, nil
}

// GetMetrics returns the investor's current metrics snapshot.
func (s *RecalcService) GetMetrics(ctx context.Context, userID string) (model.PortfolioMetrics, error) {
	return s.portfolioRepo.GetMetrics(ctx, userID)
}

// recalculate performs the actual computation and persistence for one run,
// returning the number of positions processed.
func (s *RecalcService) recalculate(ctx context.Context, userID, jobID string, reason model.RecalcReason) (int, error) {
	positions, err := s.portfolioRepo.GetCurrentPositions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrievePositions, err)
	}

	tickers := distinctTickers(positions)
	prices, err := s.resolvePrices(ctx, tickers)
	if err != nil {
		return 0, err
	}

	yields := make(map[string]model.SecurityYields, len(tickers))
	for _, ticker := range tickers {
		y, err := s.catalog.GetYields(ctx, ticker)
		if err != nil {
			return 0, err
		}
		yields[ticker] = y
	}

	now := s.clock.UTCNow()
	metrics := buildMetrics(userID, positions, prices, yields, now)

	history, err := s.portfolioRepo.GetValuationHistory(ctx, userID)
	if err != nil {
		return 0, err
	}
	cashflows, err := s.portfolioRepo.GetCashflows(ctx, userID)
	if err != nil {
		return 0, err
	}

	snapshot := model.ValuationSnapshot{AsOf: now, Value: metrics.MarketValue}
	if err := s.portfolioRepo.AppendValuationSnapshot(ctx, uuid.New().String(), userID, snapshot); err != nil {
		return 0, err
	}
	history = append(history, snapshot)

	metrics.TimeWeightedReturn = TimeWeightedReturn(history, cashflows)
	metrics.MoneyWeightedReturn = MoneyWeightedReturn(history, cashflows)
	span := ValuationSpanDays(history)
	metrics.TWRAnnualized = Annualize(metrics.TimeWeightedReturn, span)
	metrics.MWRAnnualized = Annualize(metrics.MoneyWeightedReturn, span)

	if err := s.portfolioRepo.SaveMetrics(ctx, metrics); err != nil {
		return 0, err
	}
	if err := s.portfolioRepo.AppendMetricsHistory(ctx, uuid.New().String(), jobID, reason, metrics); err != nil {
		return 0, err
	}

	return len(positions), nil
}

// resolvePrices prefers one batch lookup and falls back to per-ticker lookups
// only when the catalog reports batch is unsupported. A missing price for a
// ticker is not an error; the position is valued at zero.
func (s *RecalcService) resolvePrices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	if len(tickers) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	prices, err := s.catalog.GetLastPrices(ctx, tickers)
	if err == nil {
		return prices, nil
	}
	if !errors.Is(err, apperrors.ErrBatchUnsupported) {
		return nil, err
	}

	prices = make(map[string]decimal.Decimal, len(tickers))
	for _, ticker := range tickers {
		price, err := s.catalog.GetLastPrice(ctx, ticker)
		if errors.Is(err, apperrors.ErrPriceNotFound) || errors.Is(err, apperrors.ErrSecurityNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		prices[ticker] = price
	}
	return prices, nil
}

// buildMetrics derives the valuation snapshot from positions, prices and
// yields. Yield contributions are weighted by market value when positive,
// otherwise by cost; a weighted yield is emitted only when its numerator is
// strictly positive. Monetary outputs are rounded to two decimals, yields to
// six, half away from zero.
func buildMetrics(userID string, positions []model.Position, prices map[string]decimal.Decimal, yields map[string]model.SecurityYields, now time.Time) model.PortfolioMetrics {
	invested := decimal.Zero
	value := decimal.Zero
	trailingNum := decimal.Zero
	trailingWeight := decimal.Zero
	forwardNum := decimal.Zero
	forwardWeight := decimal.Zero

	for _, pos := range positions {
		cost := pos.Quantity.Mul(pos.AvgCost)
		invested = invested.Add(cost)

		marketValue := decimal.Zero
		if price, ok := prices[pos.Ticker]; ok {
			marketValue = pos.Quantity.Mul(price)
		}
		value = value.Add(marketValue)

		weight := marketValue
		if !weight.IsPositive() {
			weight = cost
		}

		y := yields[pos.Ticker]
		if y.Trailing != nil {
			trailingNum = trailingNum.Add(y.Trailing.Mul(weight))
			trailingWeight = trailingWeight.Add(weight)
		}
		if y.Forward != nil {
			forwardNum = forwardNum.Add(y.Forward.Mul(weight))
			forwardWeight = forwardWeight.Add(weight)
		}
	}

	metrics := model.PortfolioMetrics{
		UserID:          userID,
		InvestedCapital: invested.Round(moneyDecimals),
		MarketValue:     value.Round(moneyDecimals),
		ProfitLoss:      value.Sub(invested).Round(moneyDecimals),
		PositionCount:   len(positions),
		CalculatedAt:    now,
	}

	if trailingNum.IsPositive() && trailingWeight.IsPositive() {
		t := trailingNum.Div(trailingWeight).Round(model.GrossDecimals)
		metrics.TrailingYield = &t
	}
	if forwardNum.IsPositive() && forwardWeight.IsPositive() {
		f := forwardNum.Div(forwardWeight).Round(model.GrossDecimals)
		metrics.ForwardYield = &f
	}

	return metrics
}

// recordFailure writes the Failed job-run record and a dead letter. Both are
// best-effort; a secondary persistence failure is logged and the original
// error still surfaces to the caller.
func (s *RecalcService) recordFailure(ctx context.Context, job model.JobRunRecord, cause error) {
	now := s.clock.UTCNow()
	job.Status = model.JobFailed
	job.ErrorMessage = cause.Error()
	job.Duration = now.Sub(job.CreatedAt)
	job.UpdatedAt = now
	if err := s.portfolioRepo.UpdateJobRun(ctx, job); err != nil {
		log.Printf("failed to record failed job run %s: %v", job.ID, err)
	}

	deadLetter := model.JobDeadLetterRecord{
		ID:           uuid.New().String(),
		JobID:        job.ID,
		UserID:       job.UserID,
		Reason:       job.Reason,
		ErrorType:    fmt.Sprintf("%T", cause),
		ErrorMessage: cause.Error(),
		Stack:        string(debug.Stack()),
		FailedAt:     now,
	}
	if err := s.portfolioRepo.InsertDeadLetter(ctx, deadLetter); err != nil {
		log.Printf("failed to record dead letter for job %s: %v", job.ID, err)
	}
}

func distinctTickers(positions []model.Position) []string {
	set := make(map[string]bool, len(positions))
	for _, pos := range positions {
		set[pos.Ticker] = true
	}
	tickers := make([]string, 0, len(set))
	for ticker := range set {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// truncateToDay drops the time component, keeping the UTC calendar date.
func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
