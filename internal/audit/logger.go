// Package audit records account actions best-effort. A failed audit write
// never fails the operation being audited.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gaini88088/expert-pancake/internal/audit/domain"
	auditrepo "github.com/gaini88088/expert-pancake/internal/audit/repository"
)

// Actions recorded by the session lifecycle.
const (
	ActionLogin              = "login"
	ActionLogout             = "logout"
	ActionLogoutOthers       = "logout_others"
	ActionLogoutAll          = "logout_all"
	ActionEmergencyLogout    = "emergency_logout"
	ActionSessionExpired     = "session_expired"
	ActionVerificationBegin  = "verification_begin"
	ActionVerificationPassed = "verification_passed"
	ActionVerificationFailed = "verification_failed"
	ActionDeviceForgotten    = "device_forgotten"
)

// Outcomes for recorded actions.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// writeTimeout bounds one audit write so a wedged store cannot pile up
// goroutines indefinitely.
const writeTimeout = 5 * time.Second

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. LogEvent is best-effort: failures
// are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, sessionID, action, outcome, detail string)
}

// Logger implements AuditLogger using the audit repository and an optional IP
// extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	logger      *slog.Logger
	nowF        func() time.Time
	wg          sync.WaitGroup
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor
// for the client IP. ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		repo:        repo,
		ipExtractor: ipExtractor,
		logger:      logger.With("component", "audit"),
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent writes one audit entry in the background. The write runs on a
// detached context so a cancelled request still leaves its trace, and errors
// are logged, never returned.
func (l *Logger) LogEvent(ctx context.Context, userID, sessionID, action, outcome, detail string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if got := l.ipExtractor(ctx); got != "" {
			ip = got
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
		Action:    action,
		Outcome:   outcome,
		IP:        ip,
		Detail:    detail,
		CreatedAt: l.nowF(),
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := l.repo.Create(writeCtx, entry); err != nil {
			l.logger.Warn("audit write failed", "action", action, "user_id", userID, "error", err)
		}
	}()
}

// Drain blocks until in-flight writes finish or ctx expires.
func (l *Logger) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
