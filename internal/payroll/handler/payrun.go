package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/peopleops/hrms-backend/internal/payroll/service"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// PayRunHandler handles pay-run endpoints
type PayRunHandler struct {
	service *service.PayRunService
	logger  *logger.Logger
}

// NewPayRunHandler creates a new pay-run handler
func NewPayRunHandler(svc *service.PayRunService, log *logger.Logger) *PayRunHandler {
	return &PayRunHandler{
		service: svc,
		logger:  log,
	}
}

// Generate runs payroll for one period
func (h *PayRunHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	run, err := h.service.Generate(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, "pay-run generated", run)
}

// Get returns one pay-run with line items
func (h *PayRunHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "pay-run retrieved", run)
}

// List returns pay-run headers
func (h *PayRunHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.service.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "pay-runs retrieved", runs)
}

// Export streams a pay-run as CSV
func (h *PayRunHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="payrun-%d-%02d.csv"`, run.PayRun.Year, run.PayRun.Month))

	if err := h.service.ExportCSV(r.Context(), id, w); err != nil {
		h.logger.Error().Err(err).Str("payrun_id", id).Msg("csv export failed")
	}
}
