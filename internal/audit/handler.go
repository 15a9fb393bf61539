package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// Handler exposes audit browsing to administrators.
type Handler struct {
	repo   *Repository
	logger *logger.Logger
}

// NewHandler creates a new audit handler
func NewHandler(repo *Repository, log *logger.Logger) *Handler {
	return &Handler{repo: repo, logger: log}
}

// List handles GET /admin/audit-logs with filters by actor, action,
// entity kind and time range.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := &ListFilter{
		Actor:      q.Get("user"),
		Action:     q.Get("action"),
		EntityKind: q.Get("entity"),
	}

	if from := q.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	entries, total, err := h.repo.List(r.Context(), filter, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "audit entries retrieved", map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}
