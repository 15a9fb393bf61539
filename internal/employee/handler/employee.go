package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peopleops/hrms-backend/internal/employee/repository"
	"github.com/peopleops/hrms-backend/internal/employee/service"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// EmployeeHandler handles employee endpoints
type EmployeeHandler struct {
	service *service.EmployeeService
	logger  *logger.Logger
}

// NewEmployeeHandler creates a new employee handler
func NewEmployeeHandler(svc *service.EmployeeService, log *logger.Logger) *EmployeeHandler {
	return &EmployeeHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles employee creation
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateEmployeeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	emp, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, "employee created", emp)
}

// Get returns one employee by public id
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "publicID")

	emp, err := h.service.Get(r.Context(), publicID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "employee retrieved", emp)
}

// List returns employees filtered by status and department
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	params := repository.ListParams{
		Status:     r.URL.Query().Get("status"),
		Department: r.URL.Query().Get("department"),
	}
	params.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	params.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	employees, total, err := h.service.List(r.Context(), params)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "employees retrieved", map[string]interface{}{
		"employees": employees,
		"total":     total,
	})
}

// Update handles employee updates
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "publicID")

	var req service.UpdateEmployeeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	emp, err := h.service.Update(r.Context(), publicID, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "employee updated", emp)
}

// Delete handles employee deletion
func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "publicID")

	if err := h.service.Delete(r.Context(), publicID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Preview computes a compensation breakdown without persisting
func (h *EmployeeHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req service.CompensationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	breakdown, err := h.service.Preview(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "compensation computed", breakdown)
}
