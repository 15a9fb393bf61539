package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peopleops/hrms-backend/internal/loan/repository"
	"github.com/peopleops/hrms-backend/internal/loan/service"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// LoanHandler handles loan endpoints
type LoanHandler struct {
	service *service.LoanService
	logger  *logger.Logger
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(svc *service.LoanService, log *logger.Logger) *LoanHandler {
	return &LoanHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles loan creation
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.LoanRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	l, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, "loan created", l)
}

// Get returns one loan with its schedule
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "loan retrieved", l)
}

// List returns loans filtered by employee and status
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	params := repository.ListParams{
		EmployeeID: r.URL.Query().Get("employee_id"),
		Status:     r.URL.Query().Get("status"),
	}
	params.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	params.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	loans, total, err := h.service.List(r.Context(), params)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "loans retrieved", map[string]interface{}{
		"loans": loans,
		"total": total,
	})
}

// Cancel freezes an active loan
func (h *LoanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "loan cancelled", l)
}

// Delete removes a loan with no repayments
func (h *LoanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
