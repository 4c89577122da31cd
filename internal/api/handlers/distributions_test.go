package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fibratrack/fibratrack-backend/internal/api/handlers"
	"github.com/fibratrack/fibratrack-backend/internal/testutil"
)

// TestImportEndpoint tests the distribution import endpoint.
func TestImportEndpoint(t *testing.T) {
	t.Run("imports rows and reports the inserted count", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		importService, _ := testutil.NewTestImportService(t, db)
		handler := handlers.NewDistributionHandler(importService)

		body := `{
			"distributions": [
				{"ticker": "FUNO11", "payDate": "2024-03-15", "grossPerCbfi": "1.10", "type": "cash_dividend", "source": "import", "confidence": 0.5},
				{"ticker": "DANHOS13", "payDate": "2024-03-20", "grossPerCbfi": "0.55", "type": "cash_dividend", "source": "import", "confidence": 0.5}
			]
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/distributions/import", strings.NewReader(body))
		w := httptest.NewRecorder()

		// Execute
		handler.Import(w, req)

		// Assert
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp handlers.ImportResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Received != 2 || resp.Inserted != 2 {
			t.Errorf("Expected 2 received / 2 inserted, got %d / %d", resp.Received, resp.Inserted)
		}
	})

	t.Run("rejects an empty payload", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		importService, _ := testutil.NewTestImportService(t, db)
		handler := handlers.NewDistributionHandler(importService)

		req := httptest.NewRequest(http.MethodPost, "/api/distributions/import", strings.NewReader(`{"distributions": []}`))
		w := httptest.NewRecorder()

		// Execute
		handler.Import(w, req)

		// Assert
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("rejects a row with an invalid ticker", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		importService, _ := testutil.NewTestImportService(t, db)
		handler := handlers.NewDistributionHandler(importService)

		body := `{
			"distributions": [
				{"ticker": "not a ticker", "payDate": "2024-03-15", "grossPerCbfi": "1.10", "type": "cash_dividend", "source": "import", "confidence": 0.5}
			]
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/distributions/import", strings.NewReader(body))
		w := httptest.NewRecorder()

		// Execute
		handler.Import(w, req)

		// Assert
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}
