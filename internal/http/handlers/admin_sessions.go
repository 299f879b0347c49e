package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bekzodov/meddist-ai-assistant/internal/conversation"
	"github.com/bekzodov/meddist-ai-assistant/pkg/logging"
)

// AdminSessionsHandler exposes the session store for operators.
type AdminSessionsHandler struct {
	store      *conversation.ContextStore
	sessionTTL time.Duration
	logger     *logging.Logger
}

// NewAdminSessionsHandler creates the admin sessions handler.
func NewAdminSessionsHandler(store *conversation.ContextStore, sessionTTL time.Duration, logger *logging.Logger) *AdminSessionsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionsHandler{
		store:      store,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// List handles GET /admin/sessions.
func (h *AdminSessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries := h.store.Summaries()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(summaries),
		"sessions": summaries,
	})
}

// Cleanup handles POST /admin/sessions/cleanup and forces an expiry sweep.
func (h *AdminSessionsHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed := h.store.CleanupExpired(h.sessionTTL)
	h.logger.Info("manual session cleanup", "removed", removed)
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// Delete handles DELETE /admin/sessions/{sessionID}.
func (h *AdminSessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	h.store.Remove(sessionID)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": sessionID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
