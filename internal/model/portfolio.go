package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one executed lot for one investor. Quantity and price are
// non-negative; the materialized position for a ticker is the quantity-weighted
// aggregation of its trades.
type Trade struct {
	ID       string
	UserID   string
	Ticker   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	TradedAt time.Time
}

// Position is the materialized holding of one investor in one ticker:
// total quantity and quantity-weighted average cost.
type Position struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avgCost"`
}

// ValuationSnapshot is an immutable historical portfolio valuation point,
// ordered by AsOf. Snapshots are appended by the recalculation routine and
// superseded, never deleted.
type ValuationSnapshot struct {
	AsOf  time.Time
	Value decimal.Decimal
}

// Cashflow is an external portfolio flow. Positive amounts are contributions,
// negative amounts are withdrawals.
type Cashflow struct {
	OccurredAt time.Time
	Amount     decimal.Decimal
}

// PortfolioMetrics is the derived valuation/performance snapshot owned by the
// recalculation routine. Monetary fields are rounded to two decimals, yields to
// six; nil pointer fields mean "not computable from the available data".
type PortfolioMetrics struct {
	UserID              string
	InvestedCapital     decimal.Decimal
	MarketValue         decimal.Decimal
	ProfitLoss          decimal.Decimal
	TrailingYield       *decimal.Decimal
	ForwardYield        *decimal.Decimal
	TimeWeightedReturn  *float64
	MoneyWeightedReturn *float64
	TWRAnnualized       *float64
	MWRAnnualized       *float64
	PositionCount       int
	CalculatedAt        time.Time
}
