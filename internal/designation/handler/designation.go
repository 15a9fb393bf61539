package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/peopleops/hrms-backend/internal/designation/service"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// DesignationHandler handles designation endpoints
type DesignationHandler struct {
	service *service.DesignationService
	logger  *logger.Logger
}

// NewDesignationHandler creates a new designation handler
func NewDesignationHandler(svc *service.DesignationService, log *logger.Logger) *DesignationHandler {
	return &DesignationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles designation creation
func (h *DesignationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.DesignationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	d, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, "designation created", d)
}

// Get returns one designation
func (h *DesignationHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "designation retrieved", d)
}

// List returns all designations
func (h *DesignationHandler) List(w http.ResponseWriter, r *http.Request) {
	designations, err := h.service.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "designations retrieved", designations)
}

// Update handles designation updates
func (h *DesignationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.DesignationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	d, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "designation updated", d)
}

// Delete handles designation deletion
func (h *DesignationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
