package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/model"
)

// SecurityBuilder provides a fluent interface for creating test securities.
//
// Example usage:
//
//	// Simple creation with defaults
//	ticker := testutil.NewSecurity().Build(t, db)
//
//	// Customized security
//	ticker := testutil.NewSecurity().
//	    WithTicker("FUNO11").
//	    WithLastPrice("120").
//	    Build(t, db)
type SecurityBuilder struct {
	Ticker        string
	Name          string
	Currency      string
	LastPrice     *string
	TrailingYield *string
	ForwardYield  *string
}

// NewSecurity creates a SecurityBuilder with sensible defaults.
func NewSecurity() *SecurityBuilder {
	return &SecurityBuilder{
		Ticker:   MakeTicker(),
		Name:     "Test FIBRA",
		Currency: "MXN",
	}
}

// WithTicker sets a custom ticker.
func (b *SecurityBuilder) WithTicker(ticker string) *SecurityBuilder {
	b.Ticker = ticker
	return b
}

// WithName sets a custom name.
func (b *SecurityBuilder) WithName(name string) *SecurityBuilder {
	b.Name = name
	return b
}

// WithLastPrice sets the last traded price as a decimal string.
func (b *SecurityBuilder) WithLastPrice(price string) *SecurityBuilder {
	b.LastPrice = &price
	return b
}

// WithYields sets the trailing and forward yields as decimal strings.
func (b *SecurityBuilder) WithYields(trailing, forward string) *SecurityBuilder {
	b.TrailingYield = &trailing
	b.ForwardYield = &forward
	return b
}

// Build inserts the security and returns its ticker.
func (b *SecurityBuilder) Build(t *testing.T, db *sql.DB) string {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO security (ticker, name, currency, last_price, trailing_yield, forward_yield)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.Ticker, b.Name, b.Currency, nullable(b.LastPrice), nullable(b.TrailingYield), nullable(b.ForwardYield),
	)
	if err != nil {
		t.Fatalf("Failed to insert test security: %v", err)
	}

	return b.Ticker
}

// DistributionBuilder provides a fluent interface for creating test
// distribution records.
//
// Example usage:
//
//	rec := testutil.NewDistribution("FUNO11").
//	    WithGross("1.10").
//	    WithPayDate("2024-03-15").
//	    Build(t, db)
type DistributionBuilder struct {
	ID           string
	Ticker       string
	PayDate      string
	ExDate       *string
	GrossPerCBFI string
	Currency     string
	Type         model.DistributionType
	Source       string
	Confidence   float64
	Status       model.DistributionStatus
	PeriodTag    string
}

// NewDistribution creates a DistributionBuilder in imported state with
// sensible defaults.
func NewDistribution(ticker string) *DistributionBuilder {
	return &DistributionBuilder{
		ID:           MakeID(),
		Ticker:       ticker,
		PayDate:      "2024-03-15",
		GrossPerCBFI: "1.100000",
		Currency:     "MXN",
		Type:         model.DistributionDividend,
		Source:       "import",
		Confidence:   0.5,
		Status:       model.DistributionImported,
		PeriodTag:    "2024Q1",
	}
}

// WithGross sets the gross amount per CBFI as a decimal string.
func (b *DistributionBuilder) WithGross(gross string) *DistributionBuilder {
	b.GrossPerCBFI = gross
	return b
}

// WithPayDate sets the pay date (YYYY-MM-DD).
func (b *DistributionBuilder) WithPayDate(payDate string) *DistributionBuilder {
	b.PayDate = payDate
	return b
}

// WithType sets the distribution type.
func (b *DistributionBuilder) WithType(dtype model.DistributionType) *DistributionBuilder {
	b.Type = dtype
	return b
}

// WithStatus sets the lifecycle status.
func (b *DistributionBuilder) WithStatus(status model.DistributionStatus) *DistributionBuilder {
	b.Status = status
	return b
}

// WithPeriodTag sets the period tag.
func (b *DistributionBuilder) WithPeriodTag(tag string) *DistributionBuilder {
	b.PeriodTag = tag
	return b
}

// Verified marks the record as already verified.
func (b *DistributionBuilder) Verified() *DistributionBuilder {
	b.Status = model.DistributionVerified
	b.Confidence = model.VerifiedConfidence
	b.Source = "official"
	return b
}

// Build inserts the distribution record and returns its ID.
func (b *DistributionBuilder) Build(t *testing.T, db *sql.DB) string {
	t.Helper()

	now := time.Now().UTC().Format(time.RFC3339)
	// Stored the way the repository stores it: rounded, trailing zeros trimmed.
	gross := MustDecimal(t, b.GrossPerCBFI).Round(model.GrossDecimals).String()
	_, err := db.Exec(
		`INSERT INTO distribution (id, ticker, pay_date, ex_date, gross_per_cbfi, currency, type,
		                           source, confidence, status, period_tag, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Ticker, b.PayDate, nullable(b.ExDate), gross, b.Currency, string(b.Type),
		b.Source, b.Confidence, string(b.Status), b.PeriodTag, now, now,
	)
	if err != nil {
		t.Fatalf("Failed to insert test distribution: %v", err)
	}

	return b.ID
}

// TradeBuilder provides a fluent interface for creating test trades.
type TradeBuilder struct {
	ID       string
	UserID   string
	Ticker   string
	Quantity string
	Price    string
	TradedAt time.Time
}

// NewTrade creates a TradeBuilder with sensible defaults.
func NewTrade(userID, ticker string) *TradeBuilder {
	return &TradeBuilder{
		ID:       MakeID(),
		UserID:   userID,
		Ticker:   ticker,
		Quantity: "10",
		Price:    "100",
		TradedAt: time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC),
	}
}

// WithQuantity sets the lot quantity as a decimal string.
func (b *TradeBuilder) WithQuantity(quantity string) *TradeBuilder {
	b.Quantity = quantity
	return b
}

// WithPrice sets the lot price as a decimal string.
func (b *TradeBuilder) WithPrice(price string) *TradeBuilder {
	b.Price = price
	return b
}

// WithTradedAt sets the execution time.
func (b *TradeBuilder) WithTradedAt(tradedAt time.Time) *TradeBuilder {
	b.TradedAt = tradedAt
	return b
}

// Build inserts the trade and returns its ID.
func (b *TradeBuilder) Build(t *testing.T, db *sql.DB) string {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO trade (id, user_id, ticker, quantity, price, traded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Ticker, b.Quantity, b.Price, b.TradedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("Failed to insert test trade: %v", err)
	}

	return b.ID
}

// InsertValuation adds one valuation history point for the user.
func InsertValuation(t *testing.T, db *sql.DB, userID string, asOf time.Time, value string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO portfolio_valuation (id, user_id, as_of, value) VALUES (?, ?, ?, ?)`,
		MakeID(), userID, asOf.UTC().Format(time.RFC3339), value,
	)
	if err != nil {
		t.Fatalf("Failed to insert test valuation: %v", err)
	}
}

// InsertCashflow adds one external cashflow for the user. Positive amounts are
// contributions.
func InsertCashflow(t *testing.T, db *sql.DB, userID string, occurredAt time.Time, amount string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO portfolio_cashflow (id, user_id, occurred_at, amount) VALUES (?, ?, ?, ?)`,
		MakeID(), userID, occurredAt.UTC().Format(time.RFC3339), amount,
	)
	if err != nil {
		t.Fatalf("Failed to insert test cashflow: %v", err)
	}
}

// MustDecimal parses a decimal string, failing the test on error.
func MustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Failed to parse decimal %q: %v", s, err)
	}
	return d
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
