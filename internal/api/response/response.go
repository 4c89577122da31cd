// Package response writes the JSON envelopes shared by every handler.
package response

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the error envelope. Details carries optional context such
// as the offending ticker or a validation message.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// RespondJSON writes data as JSON with the given status code. A nil data
// writes the status alone. Encoding failures are logged; the status line has
// already gone out by then.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("failed to encode JSON response: %v", err)
		}
	}
}

// RespondError writes a structured error envelope with the given status code.
//
// Example:
//
//	response.RespondError(w, http.StatusBadRequest, "invalid ticker", err.Error())
//	response.RespondError(w, http.StatusNotFound, "unknown security", ticker)
func RespondError(w http.ResponseWriter, status int, message string, details interface{}) {
	response := ErrorResponse{
		Error:   message,
		Details: details,
	}
	RespondJSON(w, status, response)
}
