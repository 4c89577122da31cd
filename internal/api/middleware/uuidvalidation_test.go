package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fibratrack/fibratrack-backend/internal/api/middleware"
	"github.com/fibratrack/fibratrack-backend/internal/testutil"
)

// TestValidateUserIDMiddleware tests the userID URL parameter guard.
func TestValidateUserIDMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := middleware.ValidateUserIDMiddleware(next)

	t.Run("passes a valid UUID through", func(t *testing.T) {
		userID := testutil.MakeID()
		req := testutil.NewRequestWithURLParams(
			http.MethodGet,
			"/api/portfolio/"+userID+"/metrics",
			map[string]string{"userID": userID},
		)
		w := httptest.NewRecorder()

		guarded.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("rejects a malformed UUID", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(
			http.MethodGet,
			"/api/portfolio/not-a-uuid/metrics",
			map[string]string{"userID": "not-a-uuid"},
		)
		w := httptest.NewRecorder()

		guarded.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("rejects a missing userID", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/portfolio//metrics", nil)
		w := httptest.NewRecorder()

		guarded.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}
