package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DistributionStatus tracks the lifecycle of an imported distribution record.
// Transitions are one-directional: imported -> verified or imported -> ignored.
// Split children are inserted directly as verified.
type DistributionStatus string

const (
	DistributionImported DistributionStatus = "imported"
	DistributionVerified DistributionStatus = "verified"
	DistributionIgnored  DistributionStatus = "ignored"
)

// DistributionType classifies a distribution event.
type DistributionType string

const (
	DistributionDividend      DistributionType = "Dividend"
	DistributionCapitalReturn DistributionType = "CapitalReturn"
	DistributionOther         DistributionType = "Other"
)

// NormalizeDistributionType maps free-form source labels onto the known types.
func NormalizeDistributionType(raw string) DistributionType {
	switch raw {
	case "Dividend", "dividend", "DIVIDEND", "cash_dividend":
		return DistributionDividend
	case "CapitalReturn", "capital_return", "return_of_capital", "ROC":
		return DistributionCapitalReturn
	default:
		return DistributionOther
	}
}

// GrossDecimals is the fixed-point scale applied to every stored gross amount.
const GrossDecimals = 6

// VerifiedConfidence is the confidence assigned to records matched against
// the official source.
const VerifiedConfidence = 0.9

// DistributionRecord is one distribution event for one FIBRA.
// Records enter the system as "imported" and are upgraded exactly once by
// reconciliation; they are never deleted.
type DistributionRecord struct {
	ID           string
	Ticker       string
	PayDate      time.Time
	ExDate       *time.Time
	GrossPerCBFI decimal.Decimal
	Currency     string
	Type         DistributionType
	Source       string
	Confidence   float64
	Status       DistributionStatus
	PeriodTag    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OfficialDistributionRecord is the read-only source-of-truth counterpart of a
// DistributionRecord, fetched per ticker and date window. It is never persisted.
type OfficialDistributionRecord struct {
	Ticker       string
	PayDate      time.Time
	ExDate       *time.Time
	GrossPerCBFI decimal.Decimal
	Currency     string
	Type         string
	Source       string
	PeriodTag    string
}

// Verified returns a new record built from r with the matched official fields
// applied: pay date, ex-date, amount (rounded to six decimals), currency,
// source, normalized type, confidence 0.9 and status verified. The period tag
// comes from the official record when present, otherwise from fallbackTag.
func (r DistributionRecord) Verified(official OfficialDistributionRecord, fallbackTag string, now time.Time) DistributionRecord {
	out := r
	out.PayDate = official.PayDate
	out.ExDate = official.ExDate
	out.GrossPerCBFI = official.GrossPerCBFI.Round(GrossDecimals)
	if official.Currency != "" {
		out.Currency = official.Currency
	}
	out.Source = official.Source
	out.Type = NormalizeDistributionType(official.Type)
	out.Confidence = VerifiedConfidence
	out.Status = DistributionVerified
	out.PeriodTag = official.PeriodTag
	if out.PeriodTag == "" {
		out.PeriodTag = fallbackTag
	}
	out.UpdatedAt = now
	return out
}

// Ignored returns a new record built from r marked ignored. Used when the best
// official candidate carries a non-positive amount.
func (r DistributionRecord) Ignored(now time.Time) DistributionRecord {
	out := r
	out.Status = DistributionIgnored
	out.UpdatedAt = now
	return out
}

// SplitChild returns a fresh verified record for one additional official leg of
// a split match. The child carries a new identity and its own official fields.
func (r DistributionRecord) SplitChild(official OfficialDistributionRecord, fallbackTag string, now time.Time) DistributionRecord {
	child := r.Verified(official, fallbackTag, now)
	child.ID = uuid.New().String()
	child.CreatedAt = now
	return child
}
