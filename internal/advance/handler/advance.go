package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peopleops/hrms-backend/internal/advance/repository"
	"github.com/peopleops/hrms-backend/internal/advance/service"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// AdvanceHandler handles advance endpoints
type AdvanceHandler struct {
	service *service.AdvanceService
	logger  *logger.Logger
}

// NewAdvanceHandler creates a new advance handler
func NewAdvanceHandler(svc *service.AdvanceService, log *logger.Logger) *AdvanceHandler {
	return &AdvanceHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles advance creation
func (h *AdvanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.AdvanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, "advance created", a)
}

// Get returns one advance
func (h *AdvanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "advance retrieved", a)
}

// List returns advances filtered by employee and status
func (h *AdvanceHandler) List(w http.ResponseWriter, r *http.Request) {
	params := repository.ListParams{
		EmployeeID: r.URL.Query().Get("employee_id"),
		Status:     r.URL.Query().Get("status"),
	}
	params.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	params.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	advances, total, err := h.service.List(r.Context(), params)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "advances retrieved", map[string]interface{}{
		"advances": advances,
		"total":    total,
	})
}

// Update handles advance updates
func (h *AdvanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.AdvanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "advance updated", a)
}

// Delete handles advance deletion
func (h *AdvanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
