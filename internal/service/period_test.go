package service_test

import (
	"testing"
	"time"

	"github.com/fibratrack/fibratrack-backend/internal/service"
)

// TestPeriodTag tests fiscal-period label derivation.
//
// WHY: The period tag is persisted on every verified distribution when the
// official record carries none, so boundary dates must map to the right
// quarter.
func TestPeriodTag(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"january maps to Q1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2024Q1"},
		{"march maps to Q1", time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC), "2024Q1"},
		{"april maps to Q2", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "2024Q2"},
		{"september maps to Q3", time.Date(2023, 9, 15, 0, 0, 0, 0, time.UTC), "2023Q3"},
		{"december maps to Q4", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), "2025Q4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.PeriodTag(tt.date); got != tt.want {
				t.Errorf("PeriodTag(%v) = %q, want %q", tt.date, got, tt.want)
			}
		})
	}
}
