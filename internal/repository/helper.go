package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ParseTime parses a date string in "2006-01-02" or RFC3339 format.
func ParseTime(str string) (time.Time, error) {
	returnTime, err := time.Parse("2006-01-02", str)
	if err != nil {
		returnTime, err = time.Parse(time.RFC3339, str)
		if err != nil {
			returnTime, err = time.Parse("2006-01-02 15:04:05", str)
			if err != nil {
				return time.Time{}, fmt.Errorf("failed to parse date: %w", err)
			}
		}
	}
	return returnTime.UTC(), nil
}

// ParseDecimal parses a decimal column stored as TEXT. Amounts are stored as
// exact decimal strings so fixed-point rounding survives the round trip.
func ParseDecimal(str string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse decimal: %w", err)
	}
	return d, nil
}

// ParseNullDecimal parses a nullable decimal column. Returns nil for NULL.
func ParseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := ParseDecimal(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// NullDecimalString converts an optional decimal into a driver-friendly value.
func NullDecimalString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// NullTimeString converts an optional time into a driver-friendly date string.
func NullTimeString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}
