package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peopleops/hrms-backend/internal/attendance/repository"
	"github.com/peopleops/hrms-backend/internal/attendance/service"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// AttendanceHandler handles attendance endpoints
type AttendanceHandler struct {
	service *service.AttendanceService
	logger  *logger.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(svc *service.AttendanceService, log *logger.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: svc,
		logger:  log,
	}
}

// Upsert handles attendance create-or-replace
func (h *AttendanceHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req service.UpsertRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.service.Upsert(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "attendance recorded", rec)
}

// Get returns one attendance record
func (h *AttendanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "attendance retrieved", rec)
}

// List returns attendance records filtered by employee and period
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	params := repository.ListParams{
		EmployeeID: r.URL.Query().Get("employee_id"),
	}
	params.Month, _ = strconv.Atoi(r.URL.Query().Get("month"))
	params.Year, _ = strconv.Atoi(r.URL.Query().Get("year"))
	params.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	params.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	records, total, err := h.service.List(r.Context(), params)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "attendance retrieved", map[string]interface{}{
		"records": records,
		"total":   total,
	})
}

// Delete removes an unconsumed attendance record
func (h *AttendanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
