package service

import (
	"math"
	"sort"
	"time"

	"github.com/fibratrack/fibratrack-backend/internal/model"
)

const (
	mwrInitialGuess  = 0.10
	mwrMaxIterations = 50
	mwrTolerance     = 1e-7
	mwrMinDerivative = 1e-12
)

// TimeWeightedReturn chains sub-period returns across the valuation history,
// neutralizing external cashflows. For each consecutive snapshot pair the
// cashflows strictly after the earlier snapshot and up to and including the
// later one are subtracted from the later value before computing the period
// return. Periods whose starting value is non-positive are skipped without
// compounding. Returns nil with fewer than two snapshots.
func TimeWeightedReturn(valuations []model.ValuationSnapshot, cashflows []model.Cashflow) *float64 {
	if len(valuations) < 2 {
		return nil
	}

	sorted := make([]model.ValuationSnapshot, len(valuations))
	copy(sorted, valuations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AsOf.Before(sorted[j].AsOf) })

	product := 1.0
	prev := sorted[0]
	for _, curr := range sorted[1:] {
		prevValue := prev.Value.InexactFloat64()
		if prevValue <= 0 {
			prev = curr
			continue
		}

		periodFlows := 0.0
		for _, flow := range cashflows {
			if flow.OccurredAt.After(prev.AsOf) && !flow.OccurredAt.After(curr.AsOf) {
				periodFlows += flow.Amount.InexactFloat64()
			}
		}

		periodReturn := (curr.Value.InexactFloat64() - periodFlows - prevValue) / prevValue
		product *= 1 + periodReturn
		prev = curr
	}

	twr := product - 1
	return &twr
}

// MoneyWeightedReturn solves for the internal rate of return across the
// investor's cashflows plus a terminal inflow equal to the latest valuation.
// Contributions are negated so they appear as outflows from the investor's
// perspective. Time is measured in years of 365 days from the earliest flow.
// Returns nil with fewer than two flow points, when the Newton-Raphson
// derivative underflows, or when iteration exhausts without convergence.
func MoneyWeightedReturn(valuations []model.ValuationSnapshot, cashflows []model.Cashflow) *float64 {
	if len(valuations) == 0 {
		return nil
	}

	latest := valuations[0]
	for _, v := range valuations[1:] {
		if v.AsOf.After(latest.AsOf) {
			latest = v
		}
	}

	type flow struct {
		at     time.Time
		amount float64
	}

	flows := make([]flow, 0, len(cashflows)+1)
	for _, cf := range cashflows {
		flows = append(flows, flow{at: cf.OccurredAt, amount: -cf.Amount.InexactFloat64()})
	}
	flows = append(flows, flow{at: latest.AsOf, amount: latest.Value.InexactFloat64()})

	if len(flows) < 2 {
		return nil
	}

	earliest := flows[0].at
	for _, f := range flows[1:] {
		if f.at.Before(earliest) {
			earliest = f.at
		}
	}

	years := make([]float64, len(flows))
	for i, f := range flows {
		years[i] = f.at.Sub(earliest).Hours() / 24 / 365
	}

	rate := mwrInitialGuess
	for i := 0; i < mwrMaxIterations; i++ {
		var value, derivative float64
		for j, f := range flows {
			discount := math.Pow(1+rate, years[j])
			value += f.amount / discount
			derivative -= years[j] * f.amount / (discount * (1 + rate))
		}

		if math.Abs(value) < mwrTolerance {
			return &rate
		}
		if math.Abs(derivative) < mwrMinDerivative {
			return nil
		}

		rate -= value / derivative
	}

	return nil
}

// Annualize converts a total-period return into its annual equivalent over a
// span of spanDays. Returns nil when the return is absent or the span is not
// positive.
func Annualize(totalReturn *float64, spanDays float64) *float64 {
	if totalReturn == nil || spanDays <= 0 {
		return nil
	}
	annual := math.Pow(1+*totalReturn, 365/spanDays) - 1
	return &annual
}

// ValuationSpanDays returns the number of days between the earliest and latest
// valuation snapshots, or zero with fewer than two snapshots.
func ValuationSpanDays(valuations []model.ValuationSnapshot) float64 {
	if len(valuations) < 2 {
		return 0
	}

	earliest, latest := valuations[0].AsOf, valuations[0].AsOf
	for _, v := range valuations[1:] {
		if v.AsOf.Before(earliest) {
			earliest = v.AsOf
		}
		if v.AsOf.After(latest) {
			latest = v.AsOf
		}
	}

	return latest.Sub(earliest).Hours() / 24
}
