package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/log"
)

// MaxQueryLength bounds the accepted question size.
const MaxQueryLength = 4000

// QueryRequest is the POST /api/query body.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the answer payload. Sources carry a display label in
// "text" and an optional link, matching what the frontend renders.
type QueryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []course.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

// QueryHandler answers questions.
type QueryHandler struct {
	system QueryService
	logger log.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(system QueryService, logger log.Logger) *QueryHandler {
	return &QueryHandler{system: system, logger: logger}
}

// RegisterRoutes registers the query route on the mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.query)
}

func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query must not be empty")
		return
	}
	if len(req.Query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long")
		return
	}

	answer, err := h.system.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query_failed", "could not generate an answer")
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []course.Source{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: answer.SessionID,
	})
}
