package validation

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// tickerPattern matches BMV-style FIBRA tickers such as FUNO11 or FIBRATC14.
var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)

// ErrInvalidTicker is returned for tickers that do not look like BMV symbols.
var ErrInvalidTicker = fmt.Errorf("invalid ticker format")

// ValidateTicker checks that a string is a plausible exchange ticker.
func ValidateTicker(ticker string) error {
	if !tickerPattern.MatchString(ticker) {
		return fmt.Errorf("%w: %s", ErrInvalidTicker, ticker)
	}
	return nil
}

// ValidateDistributionImport checks one import row before it reaches the store.
func ValidateDistributionImport(ticker string, gross decimal.Decimal, confidence float64) error {
	v := &Error{Fields: map[string]string{}}

	if err := ValidateTicker(ticker); err != nil {
		v.Fields["ticker"] = err.Error()
	}
	if gross.IsNegative() {
		v.Fields["gross_per_cbfi"] = "must not be negative"
	}
	if confidence < 0 || confidence > 1 {
		v.Fields["confidence"] = "must be between 0 and 1"
	}

	if len(v.Fields) > 0 {
		return v
	}
	return nil
}
