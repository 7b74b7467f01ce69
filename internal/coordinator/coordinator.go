// Package coordinator sequences the composite session flows: a login that may
// displace the user's other devices, and the emergency logout. It owns
// ordering, audit, and event fan-out; trust and storage decisions stay in the
// services it calls.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaini88088/expert-pancake/internal/audit"
	notifydomain "github.com/gaini88088/expert-pancake/internal/notify/domain"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
	sessionservice "github.com/gaini88088/expert-pancake/internal/session/service"
)

// SessionManager is the minimal session surface needed by the coordinator.
type SessionManager interface {
	Create(ctx context.Context, userID, fingerprint string, class domain.DeviceClass, ip string, loc *domain.Location) (*sessionservice.CreateResult, error)
	Terminate(ctx context.Context, userID, sessionID string) error
	TerminateAllOthers(ctx context.Context, userID, currentSessionID string) (int, []*domain.Session, error)
	TerminateAll(ctx context.Context, userID string) (int, []*domain.Session, error)
}

// EventDispatcher hands events to the notification channel without blocking.
type EventDispatcher interface {
	Dispatch(event *notifydomain.Event)
}

// Coordinator wires session mutations to their audit and notification
// side effects. Side effects never fail a mutation that already happened.
type Coordinator struct {
	sessions SessionManager
	events   EventDispatcher
	audit    audit.AuditLogger
	logger   *slog.Logger

	logins       metric.Int64Counter
	terminations metric.Int64Counter
}

// New returns a Coordinator with the given collaborators.
func New(sessions SessionManager, events EventDispatcher, auditLog audit.AuditLogger, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter("github.com/gaini88088/expert-pancake/internal/coordinator")
	logins, err := meter.Int64Counter("sessions.logins",
		metric.WithDescription("Completed logins by trust state"))
	if err != nil {
		otel.Handle(err)
	}
	terminations, err := meter.Int64Counter("sessions.terminated",
		metric.WithDescription("Sessions terminated through user actions"))
	if err != nil {
		otel.Handle(err)
	}
	return &Coordinator{
		sessions:     sessions,
		events:       events,
		audit:        auditLog,
		logger:       logger.With("component", "coordinator"),
		logins:       logins,
		terminations: terminations,
	}
}

// LoginInput describes a login that already passed credential verification.
type LoginInput struct {
	UserID             string
	DeviceFingerprint  string
	DeviceClass        domain.DeviceClass
	IPAddress          string
	Location           *domain.Location
	LogoutOtherDevices bool
}

// LoginResult is the outcome of LoginNewDevice.
type LoginResult struct {
	Session              *domain.Session
	VerificationRequired bool
	// OthersTerminated counts sessions displaced by the opt-in bulk logout.
	// When BulkLogoutIncomplete is set the count covers only the sessions
	// revoked before the failure; the login itself still stands.
	OthersTerminated     int
	BulkLogoutIncomplete bool
}

// LoginNewDevice records the session, optionally displaces the user's other
// sessions, and announces the results. A failure of the optional displacement
// never rolls back the login.
func (c *Coordinator) LoginNewDevice(ctx context.Context, in LoginInput) (*LoginResult, error) {
	res, err := c.sessions.Create(ctx, in.UserID, in.DeviceFingerprint, in.DeviceClass, in.IPAddress, in.Location)
	if err != nil {
		c.audit.LogEvent(ctx, in.UserID, "", audit.ActionLogin, audit.OutcomeFailure, err.Error())
		return nil, err
	}
	sess := res.Session
	out := &LoginResult{Session: sess, VerificationRequired: res.VerificationRequired}

	if in.LogoutOtherDevices {
		n, terminated, err := c.sessions.TerminateAllOthers(ctx, in.UserID, sess.ID)
		out.OthersTerminated = n
		c.terminations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", "login_displace")))
		if err != nil {
			out.BulkLogoutIncomplete = true
			c.logger.Warn("bulk logout incomplete",
				"user_id", in.UserID, "terminated", n, "error", err)
			c.audit.LogEvent(ctx, in.UserID, sess.ID, audit.ActionLogoutOthers, audit.OutcomeFailure, err.Error())
		} else if n > 0 {
			c.audit.LogEvent(ctx, in.UserID, sess.ID, audit.ActionLogoutOthers, audit.OutcomeSuccess, countDetail(n))
		}
		for _, t := range terminated {
			c.events.Dispatch(notifydomain.NewEvent(notifydomain.EventSessionExpired, in.UserID).
				WithSession(t.ID, t.DeviceFingerprint, string(t.DeviceClass), t.IPAddress))
		}
	}

	c.events.Dispatch(notifydomain.NewEvent(notifydomain.EventLogin, in.UserID).
		WithSession(sess.ID, sess.DeviceFingerprint, string(sess.DeviceClass), sess.IPAddress))

	if sess.TrustState == domain.TrustStateSuspicious {
		c.events.Dispatch(notifydomain.NewEvent(notifydomain.EventSecurityAlert, in.UserID).
			WithSession(sess.ID, sess.DeviceFingerprint, string(sess.DeviceClass), sess.IPAddress).
			WithMeta("reason", "sign-in from an unusual location"))
	}

	c.audit.LogEvent(ctx, in.UserID, sess.ID, audit.ActionLogin, audit.OutcomeSuccess, string(sess.TrustState))
	c.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("trust_state", string(sess.TrustState))))
	return out, nil
}

// Logout terminates one session. Serves both the self logout and the
// revoke-one-device action.
func (c *Coordinator) Logout(ctx context.Context, userID, sessionID string) error {
	if err := c.sessions.Terminate(ctx, userID, sessionID); err != nil {
		c.audit.LogEvent(ctx, userID, sessionID, audit.ActionLogout, audit.OutcomeFailure, err.Error())
		return err
	}
	c.audit.LogEvent(ctx, userID, sessionID, audit.ActionLogout, audit.OutcomeSuccess, "")
	c.terminations.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "user")))
	return nil
}

// RevokeOthers terminates every session except the caller's and notifies the
// displaced devices. On a partial failure it returns the number of sessions
// actually revoked together with the error.
func (c *Coordinator) RevokeOthers(ctx context.Context, userID, currentSessionID string) (int, error) {
	n, terminated, err := c.sessions.TerminateAllOthers(ctx, userID, currentSessionID)
	c.terminations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", "user")))
	for _, t := range terminated {
		c.events.Dispatch(notifydomain.NewEvent(notifydomain.EventSessionExpired, userID).
			WithSession(t.ID, t.DeviceFingerprint, string(t.DeviceClass), t.IPAddress))
	}
	if err != nil {
		c.audit.LogEvent(ctx, userID, currentSessionID, audit.ActionLogoutOthers, audit.OutcomeFailure, err.Error())
		return n, err
	}
	c.audit.LogEvent(ctx, userID, currentSessionID, audit.ActionLogoutOthers, audit.OutcomeSuccess, countDetail(n))
	return n, nil
}

// EmergencyLogout terminates every session the user has, the caller's one
// included, and raises a security alert. Used for lost or stolen devices.
func (c *Coordinator) EmergencyLogout(ctx context.Context, userID, reason string) (int, error) {
	n, _, err := c.sessions.TerminateAll(ctx, userID)
	c.terminations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", "emergency")))
	if err != nil {
		c.audit.LogEvent(ctx, userID, "", audit.ActionEmergencyLogout, audit.OutcomeFailure, err.Error())
		return n, err
	}
	if reason == "" {
		reason = "emergency logout requested"
	}
	c.events.Dispatch(notifydomain.NewEvent(notifydomain.EventLogoutAll, userID).
		WithMeta("sessions", strconv.Itoa(n)))
	c.events.Dispatch(notifydomain.NewEvent(notifydomain.EventSecurityAlert, userID).
		WithMeta("reason", reason))
	c.audit.LogEvent(ctx, userID, "", audit.ActionEmergencyLogout, audit.OutcomeSuccess, countDetail(n))
	return n, nil
}

func countDetail(n int) string {
	return fmt.Sprintf("%d sessions", n)
}
