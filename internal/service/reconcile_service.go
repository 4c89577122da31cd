package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/repository"
)

// Matching constants. The date window and amount tolerance are deliberately
// global; per-ticker overrides are not supported.
const (
	matchWindowDays = 7
	forwardMultiple = 4
)

// matchTolerance is the relative amount tolerance for accepting an official
// candidate (3%).
var matchTolerance = decimal.NewFromFloat(0.03)

// ReconcileSummary reports the outcome of one reconciliation run.
// FailedTickers lists securities whose processing errored; their records stay
// imported and are retried on the next run.
type ReconcileSummary struct {
	Imported      int      `json:"imported"`
	Verified      int      `json:"verified"`
	Ignored       int      `json:"ignored"`
	Split         int      `json:"split"`
	FailedTickers []string `json:"failed_tickers,omitempty"`
}

// matchKind discriminates the outcome of matching one imported record against
// the official candidates.
type matchKind int

const (
	noMatch matchKind = iota
	singleMatch
	splitMatch
)

// matchResult carries the accepted official legs. For a single match Legs has
// one element; for a split match it has two or more, the first of which
// overwrites the imported record and the rest become cloned children.
type matchResult struct {
	Kind matchKind
	Legs []model.OfficialDistributionRecord
}

// ReconcileService matches imported distribution records against the official
// registry, upgrades their status, recomputes yields per affected ticker, and
// enqueues a portfolio recalculation per impacted investor.
type ReconcileService struct {
	distributionRepo *repository.DistributionRepository
	portfolioRepo    *repository.PortfolioRepository
	source           OfficialDistributionSource
	catalog          SecurityCatalog
	scheduler        JobScheduler
	clock            Clock
}

// NewReconcileService creates a new ReconcileService with the provided dependencies.
func NewReconcileService(
	distributionRepo *repository.DistributionRepository,
	portfolioRepo *repository.PortfolioRepository,
	source OfficialDistributionSource,
	catalog SecurityCatalog,
	scheduler JobScheduler,
	clock Clock,
) *ReconcileService {
	return &ReconcileService{
		distributionRepo: distributionRepo,
		portfolioRepo:    portfolioRepo,
		source:           source,
		catalog:          catalog,
		scheduler:        scheduler,
		clock:            clock,
	}
}

// Reconcile processes every imported distribution record, grouped by ticker.
// A failure while processing one ticker is logged and counted in
// FailedTickers; the run continues with the remaining tickers. After all
// tickers are processed, yields are recomputed once per distinct affected
// ticker and a recalculation is enqueued once per distinct impacted investor.
func (s *ReconcileService) Reconcile(ctx context.Context) (ReconcileSummary, error) {
	records, err := s.distributionRepo.GetByStatus(ctx, model.DistributionImported)
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("failed to load imported distributions: %w", err)
	}

	summary := ReconcileSummary{Imported: len(records)}
	affected := make(map[string]bool)

	for _, group := range groupByTicker(records) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		verified, ignored, split, err := s.reconcileTicker(ctx, group.ticker, group.records)
		if err != nil {
			log.Printf("reconciliation failed for %s: %v", group.ticker, err)
			summary.FailedTickers = append(summary.FailedTickers, group.ticker)
			continue
		}

		summary.Verified += verified
		summary.Ignored += ignored
		summary.Split += split
		if verified > 0 || ignored > 0 || split > 0 {
			affected[group.ticker] = true
		}
	}

	impacted := make(map[string]bool)
	for _, ticker := range sortedKeys(affected) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		holders, err := s.recomputeYields(ctx, ticker)
		if err != nil {
			log.Printf("yield recomputation failed for %s: %v", ticker, err)
			summary.FailedTickers = append(summary.FailedTickers, ticker)
			continue
		}
		for _, userID := range holders {
			impacted[userID] = true
		}
	}

	now := s.clock.UTCNow()
	for _, userID := range sortedKeys(impacted) {
		if err := s.scheduler.EnqueuePortfolioRecalc(userID, model.ReasonDividend, now); err != nil {
			log.Printf("failed to enqueue recalculation for user %s: %v", userID, err)
		}
	}

	return summary, nil
}

type tickerGroup struct {
	ticker  string
	records []model.DistributionRecord
}

// groupByTicker buckets records by ticker, preserving first-appearance order.
func groupByTicker(records []model.DistributionRecord) []tickerGroup {
	index := make(map[string]int)
	var groups []tickerGroup
	for _, rec := range records {
		i, ok := index[rec.Ticker]
		if !ok {
			i = len(groups)
			index[rec.Ticker] = i
			groups = append(groups, tickerGroup{ticker: rec.Ticker})
		}
		groups[i].records = append(groups[i].records, rec)
	}
	return groups
}

// reconcileTicker matches one ticker's imported records against the official
// registry. The official window is anchored at the earliest imported pay date.
func (s *ReconcileService) reconcileTicker(ctx context.Context, ticker string, records []model.DistributionRecord) (verified, ignored, split int, err error) {
	anchor := records[0].PayDate
	for _, rec := range records[1:] {
		if rec.PayDate.Before(anchor) {
			anchor = rec.PayDate
		}
	}

	officials, err := s.source.GetDistributions(ctx, ticker, anchor)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("official source: %w", err)
	}

	now := s.clock.UTCNow()
	for _, rec := range records {
		result := matchRecord(rec, officials)
		switch result.Kind {
		case singleMatch:
			official := result.Legs[0]
			if !official.GrossPerCBFI.IsPositive() {
				if err := s.distributionRepo.Update(ctx, rec.Ignored(now)); err != nil {
					return verified, ignored, split, err
				}
				ignored++
				continue
			}
			fallback := PeriodTag(official.PayDate)
			if err := s.distributionRepo.Update(ctx, rec.Verified(official, fallback, now)); err != nil {
				return verified, ignored, split, err
			}
			verified++

		case splitMatch:
			first := result.Legs[0]
			fallback := PeriodTag(first.PayDate)
			if err := s.distributionRepo.Update(ctx, rec.Verified(first, fallback, now)); err != nil {
				return verified, ignored, split, err
			}
			for _, leg := range result.Legs[1:] {
				child := rec.SplitChild(leg, PeriodTag(leg.PayDate), now)
				if err := s.distributionRepo.Insert(ctx, child); err != nil {
					return verified, ignored, split, err
				}
			}
			split++

		default:
			log.Printf("no official match for %s distribution %s paid %s, leaving imported",
				ticker, rec.ID, rec.PayDate.Format("2006-01-02"))
		}
	}

	return verified, ignored, split, nil
}

// matchRecord attempts a single match first, then a split match.
//
// Single match: official candidates whose pay date lies within seven days of
// the imported pay date, ranked by absolute amount difference ascending. The
// closest candidate is accepted when its amount difference is within 3% of the
// imported amount, or unconditionally when the imported amount is zero.
//
// Split match: the same window's candidates ordered by pay date, larger
// amounts first within a date. Two or more candidates whose summed amount
// falls within 3% of the imported amount are accepted together.
func matchRecord(rec model.DistributionRecord, officials []model.OfficialDistributionRecord) matchResult {
	candidates := windowCandidates(rec.PayDate, officials)
	if len(candidates) == 0 {
		return matchResult{Kind: noMatch}
	}

	ranked := make([]model.OfficialDistributionRecord, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		di := ranked[i].GrossPerCBFI.Sub(rec.GrossPerCBFI).Abs()
		dj := ranked[j].GrossPerCBFI.Sub(rec.GrossPerCBFI).Abs()
		return di.LessThan(dj)
	})

	best := ranked[0]
	if rec.GrossPerCBFI.IsZero() || withinTolerance(best.GrossPerCBFI, rec.GrossPerCBFI) {
		return matchResult{Kind: singleMatch, Legs: []model.OfficialDistributionRecord{best}}
	}

	if len(candidates) >= 2 {
		legs := make([]model.OfficialDistributionRecord, len(candidates))
		copy(legs, candidates)
		sort.SliceStable(legs, func(i, j int) bool {
			if !legs[i].PayDate.Equal(legs[j].PayDate) {
				return legs[i].PayDate.Before(legs[j].PayDate)
			}
			return legs[i].GrossPerCBFI.GreaterThan(legs[j].GrossPerCBFI)
		})

		sum := decimal.Zero
		for _, leg := range legs {
			sum = sum.Add(leg.GrossPerCBFI)
		}
		if withinTolerance(sum, rec.GrossPerCBFI) {
			return matchResult{Kind: splitMatch, Legs: legs}
		}
	}

	return matchResult{Kind: noMatch}
}

// windowCandidates returns the official records whose pay date lies within the
// match window around the imported pay date.
func windowCandidates(payDate time.Time, officials []model.OfficialDistributionRecord) []model.OfficialDistributionRecord {
	lo := payDate.AddDate(0, 0, -matchWindowDays)
	hi := payDate.AddDate(0, 0, matchWindowDays)

	var out []model.OfficialDistributionRecord
	for _, official := range officials {
		if !official.PayDate.Before(lo) && !official.PayDate.After(hi) {
			out = append(out, official)
		}
	}
	return out
}

// withinTolerance reports whether official is within 3% of imported.
func withinTolerance(official, imported decimal.Decimal) bool {
	diff := official.Sub(imported).Abs()
	return diff.LessThanOrEqual(matchTolerance.Mul(imported.Abs()))
}

// recomputeYields derives trailing and forward yields for one ticker from its
// verified distributions in the trailing 365 days and writes them to the
// security catalog, the distribution yield store, and the per-investor yield
// metrics of every investor currently holding the ticker. Returns the holder
// user ids so the caller can enqueue their recalculations.
func (s *ReconcileService) recomputeYields(ctx context.Context, ticker string) ([]string, error) {
	now := s.clock.UTCNow()
	verified, err := s.distributionRepo.GetVerifiedSince(ctx, ticker, now.AddDate(0, 0, -365))
	if err != nil {
		return nil, err
	}

	trailing, forward, err := deriveYields(ctx, s.catalog, ticker, verified)
	if err != nil {
		return nil, err
	}

	if err := s.catalog.SetYields(ctx, ticker, trailing, forward); err != nil {
		return nil, err
	}
	if err := s.distributionRepo.SetYields(ctx, ticker, trailing, forward); err != nil {
		return nil, err
	}

	holders, err := s.portfolioRepo.GetUsersHoldingTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	for _, userID := range holders {
		if err := s.portfolioRepo.UpdatePortfolioYieldMetrics(ctx, userID, ticker, trailing, forward); err != nil {
			return nil, err
		}
	}

	return holders, nil
}

// deriveYields computes the trailing/forward yield pair. Trailing is the
// dividend sum over the window divided by the last price; forward annualizes
// the most recent dividend. Either is nil when its inputs are non-positive or
// no price is known for the ticker.
func deriveYields(ctx context.Context, catalog SecurityCatalog, ticker string, verified []model.DistributionRecord) (trailing, forward *decimal.Decimal, err error) {
	if len(verified) == 0 {
		return nil, nil, nil
	}

	price, err := catalog.GetLastPrice(ctx, ticker)
	if errors.Is(err, apperrors.ErrPriceNotFound) || errors.Is(err, apperrors.ErrSecurityNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !price.IsPositive() {
		return nil, nil, nil
	}

	dividendSum := decimal.Zero
	var latestDividend *model.DistributionRecord
	for i, rec := range verified {
		if rec.Type != model.DistributionDividend {
			continue
		}
		dividendSum = dividendSum.Add(rec.GrossPerCBFI)
		if latestDividend == nil || rec.PayDate.After(latestDividend.PayDate) {
			latestDividend = &verified[i]
		}
	}

	if dividendSum.IsPositive() {
		t := dividendSum.Div(price).Round(model.GrossDecimals)
		trailing = &t
	}
	if latestDividend != nil && latestDividend.GrossPerCBFI.IsPositive() {
		f := latestDividend.GrossPerCBFI.Mul(decimal.NewFromInt(forwardMultiple)).Div(price).Round(model.GrossDecimals)
		forward = &f
	}

	return trailing, forward, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
