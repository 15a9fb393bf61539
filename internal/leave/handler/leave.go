package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peopleops/hrms-backend/internal/leave/repository"
	"github.com/peopleops/hrms-backend/internal/leave/service"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// LeaveHandler handles leave endpoints
type LeaveHandler struct {
	service *service.LeaveService
	logger  *logger.Logger
}

// NewLeaveHandler creates a new leave handler
func NewLeaveHandler(svc *service.LeaveService, log *logger.Logger) *LeaveHandler {
	return &LeaveHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles leave request creation
func (h *LeaveHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLeaveRequest
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

	httputil.Created(w, "leave request created", l)
}

// Get returns one leave request
func (h *LeaveHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "leave request retrieved", l)
}

// ListByEmployee returns one employee's leave requests
func (h *LeaveHandler) ListByEmployee(w http.ResponseWriter, r *http.Request) {
	params := repository.ListParams{
		Status: r.URL.Query().Get("status"),
	}
	params.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	params.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	leaves, total, err := h.service.ListByEmployee(r.Context(), chi.URLParam(r, "employeeID"), params)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "leave requests retrieved", map[string]interface{}{
		"leaves": leaves,
		"total":  total,
	})
}

func (h *LeaveHandler) decide(w http.ResponseWriter, r *http.Request,
	fn func(r *http.Request, id string, req *service.DecisionRequest) (*repository.LeaveRequest, error), message string) {

	var req service.DecisionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	l, err := fn(r, chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, message, l)
}

// ManagerApprove handles the first approval stage
func (h *LeaveHandler) ManagerApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(r *http.Request, id string, req *service.DecisionRequest) (*repository.LeaveRequest, error) {
		return h.service.ManagerApprove(r.Context(), id, req)
	}, "leave request approved by manager")
}

// AdminApprove handles the final approval stage
func (h *LeaveHandler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(r *http.Request, id string, req *service.DecisionRequest) (*repository.LeaveRequest, error) {
		return h.service.AdminApprove(r.Context(), id, req)
	}, "leave request approved")
}

// Reject handles rejection at either stage
func (h *LeaveHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(r *http.Request, id string, req *service.DecisionRequest) (*repository.LeaveRequest, error) {
		return h.service.Reject(r.Context(), id, req)
	}, "leave request rejected")
}

// Cancel handles cancellation by the owner or an elevated role
func (h *LeaveHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "leave request cancelled", l)
}
