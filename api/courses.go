package api

import (
	"net/http"

	"github.com/studyowl/studyowl/internal/log"
)

// CoursesHandler serves corpus analytics.
type CoursesHandler struct {
	system QueryService
	logger log.Logger
}

// NewCoursesHandler creates a courses handler.
func NewCoursesHandler(system QueryService, logger log.Logger) *CoursesHandler {
	return &CoursesHandler{system: system, logger: logger}
}

// RegisterRoutes registers the courses route on the mux.
func (h *CoursesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/courses", h.courses)
}

func (h *CoursesHandler) courses(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.system.GetAnalytics(r.Context())
	if err != nil {
		h.logger.Error("analytics failed", "error", err)
		writeError(w, http.StatusInternalServerError, "analytics_failed", "could not read course statistics")
		return
	}
	if analytics.CourseTitles == nil {
		analytics.CourseTitles = []string{}
	}
	writeJSON(w, http.StatusOK, analytics)
}
