package officialsource_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/officialsource"
)

// TestGetDistributions tests request construction and response parsing
// against a stub registry.
func TestGetDistributions(t *testing.T) {
	anchor := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("parses published distributions", func(t *testing.T) {
		// Setup
		var gotPath, gotQuery, gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			gotAuth = r.Header.Get("Authorization")

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"distributions": [
					{
						"ticker": "FUNO11",
						"pay_date": "2024-03-18",
						"ex_date": "2024-03-14",
						"gross_per_cbfi": "1.12",
						"currency": "MXN",
						"type": "cash_dividend",
						"period_tag": "2024Q1"
					}
				]
			}`))
		}))
		defer server.Close()

		client := officialsource.NewClient(server.URL, "test-token")

		// Execute
		records, err := client.GetDistributions(context.Background(), "FUNO11", anchor)

		// Assert
		if err != nil {
			t.Fatalf("GetDistributions failed: %v", err)
		}
		if gotPath != "/v1/distributions/FUNO11" {
			t.Errorf("Expected path /v1/distributions/FUNO11, got %s", gotPath)
		}
		if gotQuery != "from=2024-02-29&to=2025-03-15" {
			t.Errorf("Unexpected window query: %s", gotQuery)
		}
		if gotAuth != "Bearer test-token" {
			t.Errorf("Expected bearer credential, got %q", gotAuth)
		}

		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}
		rec := records[0]
		if !rec.GrossPerCBFI.Equal(decimal.RequireFromString("1.12")) {
			t.Errorf("Expected gross 1.12, got %s", rec.GrossPerCBFI)
		}
		if rec.PayDate.Format("2006-01-02") != "2024-03-18" {
			t.Errorf("Expected pay date 2024-03-18, got %s", rec.PayDate.Format("2006-01-02"))
		}
		if rec.ExDate == nil || rec.ExDate.Format("2006-01-02") != "2024-03-14" {
			t.Errorf("Expected ex date 2024-03-14, got %v", rec.ExDate)
		}
		if rec.Source != officialsource.SourceName {
			t.Errorf("Expected source %q, got %q", officialsource.SourceName, rec.Source)
		}
		if rec.PeriodTag != "2024Q1" {
			t.Errorf("Expected period tag 2024Q1, got %s", rec.PeriodTag)
		}
	})

	t.Run("surfaces a registry-reported error", func(t *testing.T) {
		// Setup
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error": "unknown ticker"}`))
		}))
		defer server.Close()

		client := officialsource.NewClient(server.URL, "test-token")

		// Execute
		_, err := client.GetDistributions(context.Background(), "NOPE11", anchor)

		// Assert
		if err == nil {
			t.Fatal("Expected an error, got nil")
		}
	})

	t.Run("surfaces a non-200 status", func(t *testing.T) {
		// Setup
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := officialsource.NewClient(server.URL, "test-token")

		// Execute
		_, err := client.GetDistributions(context.Background(), "FUNO11", anchor)

		// Assert
		if err == nil {
			t.Fatal("Expected an error, got nil")
		}
	})

	t.Run("rejects an unparseable amount", func(t *testing.T) {
		// Setup
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"distributions": [
					{"ticker": "FUNO11", "pay_date": "2024-03-18", "gross_per_cbfi": "one point one"}
				]
			}`))
		}))
		defer server.Close()

		client := officialsource.NewClient(server.URL, "test-token")

		// Execute
		_, err := client.GetDistributions(context.Background(), "FUNO11", anchor)

		// Assert
		if err == nil {
			t.Fatal("Expected an error, got nil")
		}
	})
}
