package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Security represents a listed FIBRA from the database.
type Security struct {
	Ticker        string
	Name          string
	Currency      string
	LastPrice     *decimal.Decimal
	TrailingYield *decimal.Decimal
	ForwardYield  *decimal.Decimal
	UpdatedAt     time.Time
}

// SecurityYields carries the trailing/forward pair resolved for one ticker.
// Nil means the yield could not be computed from the available data.
type SecurityYields struct {
	Trailing *decimal.Decimal
	Forward  *decimal.Decimal
}
