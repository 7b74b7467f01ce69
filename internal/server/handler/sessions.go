package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gaini88088/expert-pancake/internal/coordinator"
	"github.com/gaini88088/expert-pancake/internal/server/middleware"
	sessionservice "github.com/gaini88088/expert-pancake/internal/session/service"
)

// SessionHandler serves the session inventory and revocation endpoints.
type SessionHandler struct {
	sessions *sessionservice.Manager
	flows    *coordinator.Coordinator
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *sessionservice.Manager, flows *coordinator.Coordinator, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		sessions: sessions,
		flows:    flows,
		logger:   logger.With("component", "session_handler"),
	}
}

// List returns the caller's active sessions, the calling device flagged.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())

	sessions, err := h.sessions.List(r.Context(), userID, sessionID)
	if err != nil {
		respondSessionError(w, h.logger, err, "listing sessions failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": toSessionListJSON(sessions)})
}

// Terminate revokes one session by id. Revoking the caller's own session is
// a logout.
func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	targetID := mux.Vars(r)["id"]

	if err := h.flows.Logout(r.Context(), userID, targetID); err != nil {
		respondSessionError(w, h.logger, err, "revoking session failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type terminatedResponse struct {
	Terminated int `json:"terminated"`
}

// RevokeOthers revokes every session except the caller's. A partial failure
// reports the sessions already revoked alongside the error.
func (h *SessionHandler) RevokeOthers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())

	n, err := h.flows.RevokeOthers(r.Context(), userID, sessionID)
	if err != nil {
		h.logger.Error("revoke others incomplete", "user_id", userID, "terminated", n, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":      "some sessions could not be revoked",
			"terminated": n,
		})
		return
	}
	respondJSON(w, http.StatusOK, terminatedResponse{Terminated: n})
}

type revokeAllRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// RevokeAll is the emergency logout: every session goes, the caller's
// included. The bearer token stops working the moment this returns.
func (h *SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req revokeAllRequest
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	n, err := h.flows.EmergencyLogout(r.Context(), userID, req.Reason)
	if err != nil {
		h.logger.Error("emergency logout incomplete", "user_id", userID, "terminated", n, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":      "some sessions could not be revoked",
			"terminated": n,
		})
		return
	}
	respondJSON(w, http.StatusOK, terminatedResponse{Terminated: n})
}
