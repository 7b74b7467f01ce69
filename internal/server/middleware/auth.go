package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gaini88088/expert-pancake/internal/security"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
)

const (
	bearerPrefix = "bearer "
	touchTimeout = 5 * time.Second
)

// SessionSource loads the session a bearer token points at.
type SessionSource interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
}

// ActivityRecorder marks a session as recently used. Best-effort; the
// implementation absorbs failures.
type ActivityRecorder interface {
	TouchActivity(ctx context.Context, sessionID string)
}

// Auth validates bearer session tokens and injects the caller's identity
// into the request context. A token whose session has been revoked or
// expired away is treated exactly like a missing token.
type Auth struct {
	tokens   *security.TokenProvider
	sessions SessionSource
	activity ActivityRecorder
	logger   *slog.Logger
}

// NewAuth returns an Auth middleware with the given collaborators.
// activity may be nil when last-seen tracking is not wanted.
func NewAuth(tokens *security.TokenProvider, sessions SessionSource, activity ActivityRecorder, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auth{
		tokens:   tokens,
		sessions: sessions,
		activity: activity,
		logger:   logger.With("component", "auth_middleware"),
	}
}

// Require enforces bearer auth, checks the session is still active, records
// activity, and populates user_id and session_id on the request context.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		userID, sessionID, err := a.tokens.Validate(token)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		sess, err := a.sessions.GetByID(r.Context(), sessionID)
		if err != nil {
			a.logger.Error("session lookup failed", "session_id", sessionID, "error", err)
			jsonError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if sess == nil || !sess.Active() || sess.UserID != userID {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if a.activity != nil {
			// Detached: the request context ends with the response and
			// would cancel the write mid-flight.
			go func(id string) {
				touchCtx, cancel := context.WithTimeout(context.Background(), touchTimeout)
				defer cancel()
				a.activity.TouchActivity(touchCtx, id)
			}(sess.ID)
		}

		ctx := WithIdentity(r.Context(), userID, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearer returns the Bearer token from the Authorization header, or
// "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// jsonError writes a minimal JSON error body. The handler package carries
// richer helpers; middleware runs before any handler exists.
func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
