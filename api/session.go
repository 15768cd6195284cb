package api

import "net/http"

// SessionHandler manages conversation sessions.
type SessionHandler struct {
	system QueryService
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(system QueryService) *SessionHandler {
	return &SessionHandler{system: system}
}

// RegisterRoutes registers session routes on the mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("POST /api/sessions/{id}/clear", h.clear)
}

func (h *SessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": h.system.NewSession(),
	})
}

func (h *SessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session id is required")
		return
	}
	h.system.ClearSession(id)
	w.WriteHeader(http.StatusNoContent)
}
