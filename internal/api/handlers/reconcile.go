package handlers

import (
	"net/http"

	"github.com/fibratrack/fibratrack-backend/internal/api/response"
	"github.com/fibratrack/fibratrack-backend/internal/service"
)

// ReconcileHandler handles HTTP requests that trigger a reconciliation run.
type ReconcileHandler struct {
	reconcileService *service.ReconcileService
}

// NewReconcileHandler creates a new ReconcileHandler with the provided service dependency.
func NewReconcileHandler(reconcileService *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		reconcileService: reconcileService,
	}
}

// Reconcile handles POST requests to run a reconciliation pass over all
// imported distribution records. Per-ticker failures are reported in the
// summary, not as an HTTP error.
//
// Endpoint: POST /api/reconcile
// Response: 200 OK with ReconcileSummary
// Error: 500 Internal Server Error if the run could not start
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconcileService.Reconcile(r.Context())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "reconciliation failed", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, summary)
}
