package service

import (
	"fmt"
	"time"
)

// PeriodTag derives the canonical fiscal-period label for a date, e.g.
// "2024Q1" for any date in January through March 2024.
func PeriodTag(date time.Time) string {
	d := date.UTC()
	quarter := (int(d.Month())-1)/3 + 1
	return fmt.Sprintf("%dQ%d", d.Year(), quarter)
}
