// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fibratrack/fibratrack-backend/internal/api/response"
	"github.com/fibratrack/fibratrack-backend/internal/validation"
)

// ValidateUserIDMiddleware validates that the userID URL parameter is present
// and is a valid UUID. Returns 400 Bad Request otherwise.
//
// Example usage in router:
//
//	r.Route("/{userID}", func(r chi.Router) {
//	    r.Use(middleware.ValidateUserIDMiddleware)
//	    r.Get("/metrics", handler.Metrics)
//	})
func ValidateUserIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		if userID == "" {
			response.RespondError(w, http.StatusBadRequest, "valid user ID is required", "")
			return
		}

		if err := validation.ValidateUUID(userID); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid user ID format", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
