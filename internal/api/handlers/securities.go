package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/api/request"
	"github.com/fibratrack/fibratrack-backend/internal/api/response"
	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/service"
	"github.com/fibratrack/fibratrack-backend/internal/validation"
)

// SecurityHandler handles security catalog HTTP requests: ticker lookup and
// last-price updates.
type SecurityHandler struct {
	catalogService *service.CatalogService
}

// NewSecurityHandler creates a new SecurityHandler with the provided dependencies.
func NewSecurityHandler(catalogService *service.CatalogService) *SecurityHandler {
	return &SecurityHandler{catalogService: catalogService}
}

// SecurityResponse represents one catalog row. Absent price and yields are
// null.
type SecurityResponse struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	Currency      string  `json:"currency"`
	LastPrice     *string `json:"lastPrice"`
	TrailingYield *string `json:"trailingYield"`
	ForwardYield  *string `json:"forwardYield"`
	UpdatedAt     string  `json:"updatedAt"`
}

// Get handles GET requests for one catalog row.
//
// Endpoint: GET /api/securities/{ticker}
// Response: 200 OK with SecurityResponse
// Error: 400 Bad Request if the ticker is malformed
// Error: 404 Not Found if the ticker is not in the catalog
func (h *SecurityHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if err := validation.ValidateTicker(ticker); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}

	sec, err := h.catalogService.GetSecurity(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, apperrors.ErrSecurityNotFound) {
			response.RespondError(w, http.StatusNotFound, "unknown security", ticker)
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "failed to load security", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, toSecurityResponse(sec))
}

// UpdatePrice handles PUT requests recording a security's last traded price.
// Every investor holding the ticker gets a price-reason recalculation queued.
//
// Endpoint: PUT /api/securities/{ticker}/price
// Response: 200 OK with the queued recalculation count
// Error: 400 Bad Request if the ticker or price is malformed
// Error: 404 Not Found if the ticker is not in the catalog
func (h *SecurityHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if err := validation.ValidateTicker(ticker); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}

	var req request.UpdatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid price", err.Error())
		return
	}
	if !price.IsPositive() {
		response.RespondError(w, http.StatusBadRequest, "invalid price", "price must be positive")
		return
	}

	queued, err := h.catalogService.UpdateLastPrice(r.Context(), ticker, price)
	if err != nil {
		if errors.Is(err, apperrors.ErrSecurityNotFound) {
			response.RespondError(w, http.StatusNotFound, "unknown security", ticker)
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "failed to update price", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]any{
		"ticker":        ticker,
		"lastPrice":     price.String(),
		"recalcsQueued": queued,
	})
}

func toSecurityResponse(sec model.Security) SecurityResponse {
	decimalString := func(d *decimal.Decimal) *string {
		if d == nil {
			return nil
		}
		s := d.String()
		return &s
	}

	return SecurityResponse{
		Ticker:        sec.Ticker,
		Name:          sec.Name,
		Currency:      sec.Currency,
		LastPrice:     decimalString(sec.LastPrice),
		TrailingYield: decimalString(sec.TrailingYield),
		ForwardYield:  decimalString(sec.ForwardYield),
		UpdatedAt:     sec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
