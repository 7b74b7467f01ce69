// Package service implements the verification challenge flow: a 6-digit code
// (or an enrolled authenticator app) proves that the person holding a session
// is the account owner. Passing verification is the only path that upgrades a
// suspicious session to trusted.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaini88088/expert-pancake/internal/audit"
	notifydomain "github.com/gaini88088/expert-pancake/internal/notify/domain"
	"github.com/gaini88088/expert-pancake/internal/security"
	sessiondomain "github.com/gaini88088/expert-pancake/internal/session/domain"
	"github.com/gaini88088/expert-pancake/internal/verification/domain"
	"github.com/gaini88088/expert-pancake/internal/verification/repository"
)

// Sentinel errors for the verification flow; the HTTP layer maps them to
// status codes.
var (
	ErrNoChallenge     = errors.New("no active verification challenge")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrCodeMismatch    = errors.New("verification code mismatch")
	ErrTooManyAttempts = errors.New("too many verification attempts")
	ErrNoTOTPEnrolled  = errors.New("no authenticator app enrolled")
)

const defaultMaxAttempts = 5

// ChallengeRepo is the minimal challenge repository needed by the service.
type ChallengeRepo interface {
	Create(ctx context.Context, c *domain.Challenge) error
	GetBySession(ctx context.Context, userID, sessionID string) (*domain.Challenge, error)
	IncrementAttempts(ctx context.Context, id string) (int32, error)
	Delete(ctx context.Context, id string) error
}

// SessionVerifier upgrades a session's trust state after verification passes.
type SessionVerifier interface {
	MarkVerified(ctx context.Context, userID, sessionID string) (*sessiondomain.Session, error)
}

// TrustRecorder marks a device record as verified so future logins from it
// classify as trusted.
type TrustRecorder interface {
	RecordVerifiedLogin(ctx context.Context, userID, fingerprint string) error
}

// TOTPSource resolves a user's enrolled authenticator secret; empty means not
// enrolled.
type TOTPSource interface {
	TOTPSecret(ctx context.Context, userID string) (string, error)
}

// EventDispatcher delivers notification events without blocking the caller.
type EventDispatcher interface {
	Dispatch(event *notifydomain.Event)
}

// Config holds verification tuning knobs.
type Config struct {
	CodeTTL     time.Duration
	MaxAttempts int32
	// CodeReturnToClient includes the plain code in Begin's result. Dev mode
	// only; production delivers the code out of band.
	CodeReturnToClient bool
}

// Service issues and confirms verification challenges.
type Service struct {
	repo      ChallengeRepo
	sessions  SessionVerifier
	trust     TrustRecorder
	users     TOTPSource
	events    EventDispatcher
	audit     audit.AuditLogger
	cfg       Config
	logger    *slog.Logger
	nowF      func() time.Time
	confirmed metric.Int64Counter
}

// New returns a verification Service. Zero Config fields fall back to
// DefaultCodeTTL and 5 attempts.
func New(repo ChallengeRepo, sessions SessionVerifier, trust TrustRecorder, users TOTPSource,
	events EventDispatcher, auditLog audit.AuditLogger, cfg Config, logger *slog.Logger) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = repository.DefaultCodeTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	meter := otel.Meter("github.com/gaini88088/expert-pancake/internal/verification")
	confirmed, err := meter.Int64Counter("verification.confirmed",
		metric.WithDescription("Verification confirmations by outcome"))
	if err != nil {
		otel.Handle(err)
	}
	return &Service{
		repo:      repo,
		sessions:  sessions,
		trust:     trust,
		users:     users,
		events:    events,
		audit:     auditLog,
		cfg:       cfg,
		logger:    logger.With("component", "verification"),
		nowF:      func() time.Time { return time.Now().UTC() },
		confirmed: confirmed,
	}
}

// BeginResult holds the issued challenge. Code is set only when
// CodeReturnToClient is enabled.
type BeginResult struct {
	Challenge *domain.Challenge
	Code      string
}

// Begin issues a fresh 6-digit challenge for the session, superseding any
// earlier one, and dispatches the code through the notifier. The code itself
// travels only in the event's sensitive payload.
func (s *Service) Begin(ctx context.Context, userID, sessionID string) (*BeginResult, error) {
	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	existing, err := s.repo.GetBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if existing != nil {
		if err := s.repo.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("supersede challenge: %w", err)
		}
	}
	now := s.nowF()
	ch := &domain.Challenge{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
		CodeHash:  security.HashCode(code),
		ExpiresAt: now.Add(s.cfg.CodeTTL),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	event := notifydomain.NewEvent(notifydomain.EventSecurityAlert, userID).
		WithSession(sessionID, "", "", "").
		WithMeta("reason", "verification code issued").
		WithMeta("challengeId", ch.ID)
	event.Sensitive = map[string]string{"verificationCode": code}
	s.events.Dispatch(event)

	s.audit.LogEvent(ctx, userID, sessionID, audit.ActionVerificationBegin, audit.OutcomeSuccess, "")

	res := &BeginResult{Challenge: ch}
	if s.cfg.CodeReturnToClient {
		res.Code = code
	}
	return res, nil
}

// Confirm checks the submitted code against the session's pending challenge.
// On success the session becomes trusted and the device record is marked
// verified. Wrong codes burn an attempt; the challenge dies after
// MaxAttempts or expiry.
func (s *Service) Confirm(ctx context.Context, userID, sessionID, code string) (*sessiondomain.Session, error) {
	ch, err := s.repo.GetBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if ch == nil {
		s.fail(ctx, userID, sessionID, "no pending challenge")
		return nil, ErrNoChallenge
	}
	if ch.Expired(s.nowF()) {
		if err := s.repo.Delete(ctx, ch.ID); err != nil {
			s.logger.Warn("delete expired challenge failed", "challenge_id", ch.ID, "error", err)
		}
		s.fail(ctx, userID, sessionID, "code expired")
		return nil, ErrCodeExpired
	}
	attempts, err := s.repo.IncrementAttempts(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("count attempt: %w", err)
	}
	if attempts == 0 {
		// The challenge vanished between the read and the update.
		s.fail(ctx, userID, sessionID, "no pending challenge")
		return nil, ErrNoChallenge
	}
	if attempts > s.cfg.MaxAttempts {
		if err := s.repo.Delete(ctx, ch.ID); err != nil {
			s.logger.Warn("delete exhausted challenge failed", "challenge_id", ch.ID, "error", err)
		}
		s.events.Dispatch(notifydomain.NewEvent(notifydomain.EventSecurityAlert, userID).
			WithSession(sessionID, "", "", "").
			WithMeta("reason", "verification attempt limit reached"))
		s.fail(ctx, userID, sessionID, "attempt limit reached")
		return nil, ErrTooManyAttempts
	}
	if !security.CodeHashEqual(code, ch.CodeHash) {
		s.fail(ctx, userID, sessionID, fmt.Sprintf("code mismatch, attempt %d of %d", attempts, s.cfg.MaxAttempts))
		return nil, ErrCodeMismatch
	}
	if err := s.repo.Delete(ctx, ch.ID); err != nil {
		s.logger.Warn("delete used challenge failed", "challenge_id", ch.ID, "error", err)
	}
	return s.finish(ctx, userID, sessionID, "code")
}

// ConfirmTOTP checks the submitted passcode against the user's enrolled
// authenticator secret, with the same outcome as Confirm. Any pending code
// challenge for the session is discarded on success.
func (s *Service) ConfirmTOTP(ctx context.Context, userID, sessionID, passcode string) (*sessiondomain.Session, error) {
	secret, err := s.users.TOTPSecret(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load totp secret: %w", err)
	}
	if secret == "" {
		s.fail(ctx, userID, sessionID, "no authenticator enrolled")
		return nil, ErrNoTOTPEnrolled
	}
	if !totp.Validate(passcode, secret) {
		s.fail(ctx, userID, sessionID, "totp mismatch")
		return nil, ErrCodeMismatch
	}
	if ch, err := s.repo.GetBySession(ctx, userID, sessionID); err == nil && ch != nil {
		if err := s.repo.Delete(ctx, ch.ID); err != nil {
			s.logger.Warn("delete superseded challenge failed", "challenge_id", ch.ID, "error", err)
		}
	}
	return s.finish(ctx, userID, sessionID, "totp")
}

// finish upgrades the session, then marks the device record verified.
// MarkVerified is idempotent, so re-running verification repairs a device
// record the first pass failed to write.
func (s *Service) finish(ctx context.Context, userID, sessionID, method string) (*sessiondomain.Session, error) {
	sess, err := s.sessions.MarkVerified(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.trust.RecordVerifiedLogin(ctx, userID, sess.DeviceFingerprint); err != nil {
		return nil, fmt.Errorf("record verified device: %w", err)
	}
	s.audit.LogEvent(ctx, userID, sessionID, audit.ActionVerificationPassed, audit.OutcomeSuccess, method)
	s.count(ctx, "passed")
	s.logger.Info("verification passed", "user_id", userID, "session_id", sessionID, "method", method)
	return sess, nil
}

func (s *Service) fail(ctx context.Context, userID, sessionID, detail string) {
	s.audit.LogEvent(ctx, userID, sessionID, audit.ActionVerificationFailed, audit.OutcomeFailure, detail)
	s.count(ctx, "failed")
}

func (s *Service) count(ctx context.Context, outcome string) {
	if s.confirmed == nil {
		return
	}
	s.confirmed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
