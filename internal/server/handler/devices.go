package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gaini88088/expert-pancake/internal/audit"
	"github.com/gaini88088/expert-pancake/internal/server/middleware"
	trustservice "github.com/gaini88088/expert-pancake/internal/trust/service"
)

// DeviceHandler serves the known-device inventory built from trust records.
type DeviceHandler struct {
	trust  *trustservice.Evaluator
	audit  audit.AuditLogger
	logger *slog.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(trust *trustservice.Evaluator, auditLog audit.AuditLogger, logger *slog.Logger) *DeviceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceHandler{
		trust:  trust,
		audit:  auditLog,
		logger: logger.With("component", "device_handler"),
	}
}

// List returns the caller's known devices with their verification history.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	records, err := h.trust.ListDevices(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing devices failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "listing devices failed")
		return
	}
	devices := make([]deviceJSON, len(records))
	for i, rec := range records {
		devices[i] = toDeviceJSON(rec)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

// Forget drops the trust record for a device. Its next login starts over as
// an unrecognized device. Active sessions from it are untouched; revoke those
// separately.
func (h *DeviceHandler) Forget(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())
	fingerprint := mux.Vars(r)["fingerprint"]

	if err := h.trust.ForgetDevice(r.Context(), userID, fingerprint); err != nil {
		if errors.Is(err, trustservice.ErrDeviceNotFound) {
			respondError(w, http.StatusNotFound, "device not found")
			return
		}
		h.logger.Error("forgetting device failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "forgetting device failed")
		return
	}
	h.audit.LogEvent(r.Context(), userID, sessionID, audit.ActionDeviceForgotten, audit.OutcomeSuccess, fingerprint)
	w.WriteHeader(http.StatusNoContent)
}
