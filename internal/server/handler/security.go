package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	auditdomain "github.com/gaini88088/expert-pancake/internal/audit/domain"
	auditrepo "github.com/gaini88088/expert-pancake/internal/audit/repository"
	identityservice "github.com/gaini88088/expert-pancake/internal/identity/service"
	"github.com/gaini88088/expert-pancake/internal/server/middleware"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
	sessionservice "github.com/gaini88088/expert-pancake/internal/session/service"
	trustservice "github.com/gaini88088/expert-pancake/internal/trust/service"
)

const (
	defaultEventPageSize = 50
	maxEventPageSize     = 100
	statusRecentEvents   = 10
)

// SecurityHandler composes the account security overview and the audit
// event feed.
type SecurityHandler struct {
	sessions *sessionservice.Manager
	trust    *trustservice.Evaluator
	verifier *identityservice.Verifier
	events   auditrepo.Repository
	logger   *slog.Logger
}

// NewSecurityHandler creates a new SecurityHandler.
func NewSecurityHandler(sessions *sessionservice.Manager, trust *trustservice.Evaluator, verifier *identityservice.Verifier, events auditrepo.Repository, logger *slog.Logger) *SecurityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecurityHandler{
		sessions: sessions,
		trust:    trust,
		verifier: verifier,
		events:   events,
		logger:   logger.With("component", "security_handler"),
	}
}

type sessionCounts struct {
	Total      int `json:"total"`
	Trusted    int `json:"trusted"`
	New        int `json:"new"`
	Suspicious int `json:"suspicious"`
}

type deviceCounts struct {
	Known    int `json:"known"`
	Verified int `json:"verified"`
}

type securityStatusResponse struct {
	Sessions     sessionCounts `json:"sessions"`
	Devices      deviceCounts  `json:"devices"`
	TOTPEnrolled bool          `json:"totpEnrolled"`
	RecentEvents []eventJSON   `json:"recentEvents"`
}

type eventJSON struct {
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	SessionID string    `json:"sessionId,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toEventJSON(a *auditdomain.AuditLog) eventJSON {
	return eventJSON{
		Action:    a.Action,
		Outcome:   a.Outcome,
		SessionID: a.SessionID,
		IP:        a.IP,
		Detail:    a.Detail,
		CreatedAt: a.CreatedAt,
	}
}

// Status returns the account's security posture in one read: active session
// counts by trust state, known device totals, authenticator enrollment, and
// the latest audit events.
func (h *SecurityHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())

	sessions, err := h.sessions.List(r.Context(), userID, sessionID)
	if err != nil {
		respondSessionError(w, h.logger, err, "security status failed")
		return
	}
	counts := sessionCounts{Total: len(sessions)}
	for _, s := range sessions {
		switch s.TrustState {
		case domain.TrustStateTrusted:
			counts.Trusted++
		case domain.TrustStateSuspicious:
			counts.Suspicious++
		default:
			counts.New++
		}
	}

	records, err := h.trust.ListDevices(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing devices failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "security status failed")
		return
	}
	devices := deviceCounts{Known: len(records)}
	for _, rec := range records {
		if rec.Verified() {
			devices.Verified++
		}
	}

	secret, err := h.verifier.TOTPSecret(r.Context(), userID)
	if err != nil {
		h.logger.Error("totp lookup failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "security status failed")
		return
	}

	recent, err := h.events.ListByUser(r.Context(), userID, statusRecentEvents, 0)
	if err != nil {
		h.logger.Error("listing audit events failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "security status failed")
		return
	}
	eventsOut := make([]eventJSON, len(recent))
	for i, a := range recent {
		eventsOut[i] = toEventJSON(a)
	}

	respondJSON(w, http.StatusOK, securityStatusResponse{
		Sessions:     counts,
		Devices:      devices,
		TOTPEnrolled: secret != "",
		RecentEvents: eventsOut,
	})
}

// Events returns the caller's audit trail, newest first, paginated with
// limit and offset query parameters.
func (h *SecurityHandler) Events(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	limit := int32(defaultEventPageSize)
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 32); err == nil && n > 0 {
			limit = int32(n)
		}
	}
	if limit > maxEventPageSize {
		limit = maxEventPageSize
	}
	offset := int32(0)
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 32); err == nil && n >= 0 {
			offset = int32(n)
		}
	}

	list, err := h.events.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("listing audit events failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "listing events failed")
		return
	}
	eventsOut := make([]eventJSON, len(list))
	for i, a := range list {
		eventsOut[i] = toEventJSON(a)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": eventsOut})
}
