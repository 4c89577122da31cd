package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/api/request"
	"github.com/fibratrack/fibratrack-backend/internal/api/response"
	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/service"
	"github.com/fibratrack/fibratrack-backend/internal/validation"
)

// PortfolioHandler handles portfolio-related HTTP requests: metrics lookup,
// trade replacement and recalculation enqueuing.
type PortfolioHandler struct {
	recalcService *service.RecalcService
	importService *service.ImportService
	scheduler     service.JobScheduler
	clock         service.Clock
}

// NewPortfolioHandler creates a new PortfolioHandler with the provided dependencies.
func NewPortfolioHandler(
	recalcService *service.RecalcService,
	importService *service.ImportService,
	scheduler service.JobScheduler,
	clock service.Clock,
) *PortfolioHandler {
	return &PortfolioHandler{
		recalcService: recalcService,
		importService: importService,
		scheduler:     scheduler,
		clock:         clock,
	}
}

// MetricsResponse represents an investor's current valuation snapshot.
// Monetary values and yields are decimal strings; absent yields and returns
// are null.
type MetricsResponse struct {
	UserID              string   `json:"userId"`
	InvestedCapital     string   `json:"investedCapital"`
	MarketValue         string   `json:"marketValue"`
	ProfitLoss          string   `json:"profitLoss"`
	TrailingYield       *string  `json:"trailingYield"`
	ForwardYield        *string  `json:"forwardYield"`
	TimeWeightedReturn  *float64 `json:"timeWeightedReturn"`
	MoneyWeightedReturn *float64 `json:"moneyWeightedReturn"`
	TWRAnnualized       *float64 `json:"twrAnnualized"`
	MWRAnnualized       *float64 `json:"mwrAnnualized"`
	PositionCount       int      `json:"positionCount"`
	CalculatedAt        string   `json:"calculatedAt"`
}

// Metrics handles GET requests for an investor's current metrics snapshot.
//
// Endpoint: GET /api/portfolio/{userID}/metrics
// Response: 200 OK with MetricsResponse
// Error: 404 Not Found if no snapshot exists for the investor
// Error: 500 Internal Server Error if retrieval fails
func (h *PortfolioHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	metrics, err := h.recalcService.GetMetrics(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMetricsNotFound) {
			response.RespondError(w, http.StatusNotFound, "no metrics for user", userID)
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveMetrics.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, toMetricsResponse(metrics))
}

// Recalc handles POST requests to enqueue a portfolio recalculation. The
// request is queued; execution and retry are owned by the job runner.
//
// Endpoint: POST /api/portfolio/{userID}/recalc
// Response: 202 Accepted
// Error: 400 Bad Request if the reason is unknown
// Error: 503 Service Unavailable if the queue is full
func (h *PortfolioHandler) Recalc(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req request.RecalcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateRecalcReason(req.Reason); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid reason", err.Error())
		return
	}

	err := h.scheduler.EnqueuePortfolioRecalc(userID, model.RecalcReason(req.Reason), h.clock.UTCNow())
	if err != nil {
		if errors.Is(err, apperrors.ErrQueueFull) {
			response.RespondError(w, http.StatusServiceUnavailable, "recalculation queue full", "")
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "failed to enqueue recalculation", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// ReplaceTrades handles PUT requests that atomically replace an investor's
// trades. The replace runs in one store transaction and triggers an upload
// recalculation.
//
// Endpoint: PUT /api/portfolio/{userID}/trades
// Response: 200 OK with the materialized positions
// Error: 400 Bad Request if the payload is malformed
// Error: 500 Internal Server Error if the transaction fails
func (h *PortfolioHandler) ReplaceTrades(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req request.ReplaceTradesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	trades := make([]model.Trade, 0, len(req.Trades))
	for _, row := range req.Trades {
		trade, err := parseTradeRow(userID, row)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid trade row", err.Error())
			return
		}
		trades = append(trades, trade)
	}

	positions, err := h.importService.ReplacePortfolio(r.Context(), userID, trades)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to replace portfolio", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, positions)
}

func parseTradeRow(userID string, row request.TradeRow) (model.Trade, error) {
	if err := validation.ValidateTicker(row.Ticker); err != nil {
		return model.Trade{}, err
	}

	quantity, err := decimal.NewFromString(row.Quantity)
	if err != nil {
		return model.Trade{}, err
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return model.Trade{}, err
	}
	tradedAt, err := time.Parse(time.RFC3339, row.TradedAt)
	if err != nil {
		return model.Trade{}, err
	}

	return model.Trade{
		ID:       uuid.New().String(),
		UserID:   userID,
		Ticker:   row.Ticker,
		Quantity: quantity,
		Price:    price,
		TradedAt: tradedAt,
	}, nil
}

func toMetricsResponse(m model.PortfolioMetrics) MetricsResponse {
	decimalString := func(d *decimal.Decimal) *string {
		if d == nil {
			return nil
		}
		s := d.String()
		return &s
	}

	return MetricsResponse{
		UserID:              m.UserID,
		InvestedCapital:     m.InvestedCapital.StringFixed(2),
		MarketValue:         m.MarketValue.StringFixed(2),
		ProfitLoss:          m.ProfitLoss.StringFixed(2),
		TrailingYield:       decimalString(m.TrailingYield),
		ForwardYield:        decimalString(m.ForwardYield),
		TimeWeightedReturn:  m.TimeWeightedReturn,
		MoneyWeightedReturn: m.MoneyWeightedReturn,
		TWRAnnualized:       m.TWRAnnualized,
		MWRAnnualized:       m.MWRAnnualized,
		PositionCount:       m.PositionCount,
		CalculatedAt:        m.CalculatedAt.UTC().Format(time.RFC3339),
	}
}
