package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gaini88088/expert-pancake/internal/platform/userlock"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
	"github.com/gaini88088/expert-pancake/internal/trust/engine"
)

// Sentinel errors for the session manager; handler maps them to HTTP statuses.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrNotFound               = errors.New("session not found")
	ErrConflict               = errors.New("session set is locked, retry")
	ErrInvalidDeviceClass     = errors.New("unrecognized device class")
	ErrFingerprintRequired    = errors.New("device fingerprint is required")
)

// SessionRepo is the minimal session repository needed by the manager.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string, at time.Time) error
	UpdateLastActive(ctx context.Context, id string, at time.Time) error
	UpdateTrustState(ctx context.Context, id string, state domain.TrustState) error
}

// TrustEvaluator is the minimal trust surface needed at session creation.
type TrustEvaluator interface {
	Classify(ctx context.Context, userID, fingerprint, ip string, loc *domain.Location) (engine.Classification, error)
	EnsureRecord(ctx context.Context, userID, fingerprint string) error
}

// Manager enforces the session lifecycle over the store. All mutations for one
// user run inside that user's exclusive critical section; different users
// proceed in parallel.
type Manager struct {
	repo        SessionRepo
	trust       TrustEvaluator
	locks       *userlock.Manager
	lockTimeout time.Duration
	logger      *slog.Logger
	nowF        func() time.Time
}

// NewManager returns a Manager with the given dependencies.
func NewManager(repo SessionRepo, trust TrustEvaluator, locks *userlock.Manager, lockTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:        repo,
		trust:       trust,
		locks:       locks,
		lockTimeout: lockTimeout,
		logger:      logger.With("component", "sessions"),
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateResult is the outcome of Create: the stored session plus whether the
// trust policy demands an explicit verification step.
type CreateResult struct {
	Session              *domain.Session
	VerificationRequired bool
}

// Create records a new session for an already authenticated user. The trust
// state comes from the trust evaluator at creation time; the device's trust
// record is ensured before the session row is written so a failed write leaves
// no session behind.
func (m *Manager) Create(ctx context.Context, userID, fingerprint string, class domain.DeviceClass, ip string, loc *domain.Location) (*CreateResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, ErrFingerprintRequired
	}
	if !class.Valid() {
		return nil, ErrInvalidDeviceClass
	}

	release, err := m.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	classification, err := m.trust.Classify(ctx, userID, fingerprint, ip, loc)
	if err != nil {
		return nil, err
	}
	if err := m.trust.EnsureRecord(ctx, userID, fingerprint); err != nil {
		return nil, err
	}

	now := m.nowF()
	sess := &domain.Session{
		ID:                uuid.New().String(),
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		DeviceClass:       class,
		TrustState:        classification.State,
		IPAddress:         ip,
		Location:          loc,
		CreatedAt:         now,
		LastActiveAt:      now,
		IsCurrent:         true,
	}
	if err := m.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &CreateResult{Session: sess, VerificationRequired: classification.VerificationRequired}, nil
}

// List returns the user's active sessions, most recently active first, with
// IsCurrent computed against currentSessionID. Stored state is never mutated.
func (m *Manager) List(ctx context.Context, userID, currentSessionID string) ([]*domain.Session, error) {
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}
	list, err := m.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, s := range list {
		s.IsCurrent = s.ID == currentSessionID
	}
	return list, nil
}

// Terminate revokes one of the user's sessions. Terminating an already
// terminated session is a no-op success; a session owned by someone else is
// reported as not found.
func (m *Manager) Terminate(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return ErrAuthenticationRequired
	}
	release, err := m.lockUser(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	s, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil || s.UserID != userID {
		return ErrNotFound
	}
	if !s.Active() {
		return nil
	}
	return m.repo.Revoke(ctx, sessionID, m.nowF())
}

// TerminateAllOthers revokes every active session for the user except
// currentSessionID, from a single snapshot taken under the user lock. On a
// mid-loop storage failure it returns the sessions revoked so far together
// with the error, never a false success.
func (m *Manager) TerminateAllOthers(ctx context.Context, userID, currentSessionID string) (int, []*domain.Session, error) {
	if userID == "" {
		return 0, nil, ErrAuthenticationRequired
	}
	release, err := m.lockUser(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	defer release()

	cur, err := m.repo.GetByID(ctx, currentSessionID)
	if err != nil {
		return 0, nil, err
	}
	if cur == nil || cur.UserID != userID {
		return 0, nil, ErrNotFound
	}
	return m.revokeSnapshot(ctx, userID, currentSessionID)
}

// TerminateAll revokes every active session for the user, the caller's one
// included. Used for lost-device and password-reset flows.
func (m *Manager) TerminateAll(ctx context.Context, userID string) (int, []*domain.Session, error) {
	if userID == "" {
		return 0, nil, ErrAuthenticationRequired
	}
	release, err := m.lockUser(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	defer release()

	return m.revokeSnapshot(ctx, userID, "")
}

// revokeSnapshot lists the user's active sessions once and revokes them one by
// one, skipping keepID. Caller must hold the user lock.
func (m *Manager) revokeSnapshot(ctx context.Context, userID, keepID string) (int, []*domain.Session, error) {
	snapshot, err := m.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	now := m.nowF()
	var terminated []*domain.Session
	for _, s := range snapshot {
		if s.ID == keepID {
			continue
		}
		if err := m.repo.Revoke(ctx, s.ID, now); err != nil {
			return len(terminated), terminated, fmt.Errorf("revoke session %s: %w", s.ID, err)
		}
		revokedAt := now
		s.RevokedAt = &revokedAt
		terminated = append(terminated, s)
	}
	return len(terminated), terminated, nil
}

// TouchActivity advances the session's last-active time, best effort. It takes
// no user lock, returns nothing, and never blocks the request being served.
func (m *Manager) TouchActivity(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := m.repo.UpdateLastActive(ctx, sessionID, m.nowF()); err != nil {
		m.logger.Warn("activity touch failed", "session_id", sessionID, "error", err)
	}
}

// Expire revokes the session if it is still active and still idle past
// staleBefore, re-checked under the user lock so it cannot race a concurrent
// logout or activity touch. Reports whether it actually revoked.
func (m *Manager) Expire(ctx context.Context, userID, sessionID string, staleBefore time.Time) (*domain.Session, bool, error) {
	release, err := m.lockUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	s, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if s == nil || s.UserID != userID || !s.Active() {
		return nil, false, nil
	}
	if !s.LastActiveAt.Before(staleBefore) {
		return nil, false, nil
	}
	now := m.nowF()
	if err := m.repo.Revoke(ctx, sessionID, now); err != nil {
		return nil, false, err
	}
	s.RevokedAt = &now
	return s, true, nil
}

// MarkVerified upgrades the session's trust state to trusted. This is the only
// path that lifts a suspicious session; it is called by the verification
// service after a challenge succeeds.
func (m *Manager) MarkVerified(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}
	release, err := m.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil || s.UserID != userID || !s.Active() {
		return nil, ErrNotFound
	}
	if s.TrustState == domain.TrustStateTrusted {
		return s, nil
	}
	if err := m.repo.UpdateTrustState(ctx, sessionID, domain.TrustStateTrusted); err != nil {
		return nil, err
	}
	s.TrustState = domain.TrustStateTrusted
	return s, nil
}

func (m *Manager) lockUser(ctx context.Context, userID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()
	release, err := m.locks.Acquire(lockCtx, userID)
	if err != nil {
		return nil, ErrConflict
	}
	return release, nil
}
