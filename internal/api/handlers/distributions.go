package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/api/request"
	"github.com/fibratrack/fibratrack-backend/internal/api/response"
	"github.com/fibratrack/fibratrack-backend/internal/service"
	"github.com/fibratrack/fibratrack-backend/internal/validation"
)

// DistributionHandler handles HTTP requests for distribution import endpoints.
// It parses and validates import payloads and delegates to the ImportService.
type DistributionHandler struct {
	importService *service.ImportService
}

// NewDistributionHandler creates a new DistributionHandler with the provided service dependency.
func NewDistributionHandler(importService *service.ImportService) *DistributionHandler {
	return &DistributionHandler{
		importService: importService,
	}
}

// ImportResponse reports how many rows an import inserted versus received.
type ImportResponse struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
}

// Import handles POST requests to ingest unverified distribution rows.
// Duplicate rows for the same ticker, pay date and amount are skipped.
//
// Endpoint: POST /api/distributions/import
// Response: 200 OK with ImportResponse
// Error: 400 Bad Request if the payload is malformed or fails validation
// Error: 500 Internal Server Error if persistence fails
func (h *DistributionHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req request.ImportDistributionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Distributions) == 0 {
		response.RespondError(w, http.StatusBadRequest, "no distributions provided", "")
		return
	}

	imports := make([]service.DistributionImport, 0, len(req.Distributions))
	for _, row := range req.Distributions {
		parsed, err := parseImportRow(row)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid distribution row", err.Error())
			return
		}
		imports = append(imports, parsed)
	}

	inserted, err := h.importService.ImportDistributions(r.Context(), imports)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to import distributions", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, ImportResponse{
		Received: len(req.Distributions),
		Inserted: inserted,
	})
}

func parseImportRow(row request.ImportDistributionRow) (service.DistributionImport, error) {
	gross, err := decimal.NewFromString(row.GrossPerCBFI)
	if err != nil {
		return service.DistributionImport{}, err
	}
	if err := validation.ValidateDistributionImport(row.Ticker, gross, row.Confidence); err != nil {
		return service.DistributionImport{}, err
	}

	payDate, err := time.ParseInLocation("2006-01-02", row.PayDate, time.UTC)
	if err != nil {
		return service.DistributionImport{}, err
	}

	var exDate *time.Time
	if row.ExDate != nil && *row.ExDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", *row.ExDate, time.UTC)
		if err != nil {
			return service.DistributionImport{}, err
		}
		exDate = &parsed
	}

	return service.DistributionImport{
		Ticker:       row.Ticker,
		PayDate:      payDate,
		ExDate:       exDate,
		GrossPerCBFI: gross,
		Currency:     row.Currency,
		Type:         row.Type,
		Source:       row.Source,
		Confidence:   row.Confidence,
	}, nil
}
