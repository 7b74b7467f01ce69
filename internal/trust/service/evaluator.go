package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	sessiondomain "github.com/gaini88088/expert-pancake/internal/session/domain"
	"github.com/gaini88088/expert-pancake/internal/trust/domain"
	"github.com/gaini88088/expert-pancake/internal/trust/engine"
)

// Sentinel errors for the trust evaluator; handler maps them to HTTP statuses.
var (
	ErrDeviceNotFound = errors.New("device not found")
)

// TrustRepo is the minimal trust record repository needed by the evaluator.
type TrustRepo interface {
	Get(ctx context.Context, userID, fingerprint string) (*domain.TrustRecord, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.TrustRecord, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Ensure(ctx context.Context, rec *domain.TrustRecord) error
	RecordVerifiedLogin(ctx context.Context, userID, fingerprint string, at time.Time) error
	Delete(ctx context.Context, userID, fingerprint string) (bool, error)
}

// SessionHistory is the minimal session repository needed by the evaluator.
type SessionHistory interface {
	HasAnyForUser(ctx context.Context, userID string) (bool, error)
	ListTrustedLocations(ctx context.Context, userID string) ([]sessiondomain.Location, error)
}

// Evaluator classifies devices against their trust history and maintains the
// trust records themselves.
type Evaluator struct {
	trustRepo      TrustRepo
	sessions       SessionHistory
	engine         engine.Evaluator
	geoThresholdKm float64
	logger         *slog.Logger
	nowF           func() time.Time
}

// NewEvaluator returns an Evaluator with the given dependencies.
func NewEvaluator(trustRepo TrustRepo, sessions SessionHistory, eng engine.Evaluator, geoThresholdKm float64, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		trustRepo:      trustRepo,
		sessions:       sessions,
		engine:         eng,
		geoThresholdKm: geoThresholdKm,
		logger:         logger.With("component", "trust"),
		nowF:           func() time.Time { return time.Now().UTC() },
	}
}

// Classify returns the trust classification for a login from the given device.
// Storage errors propagate; policy evaluation falls back on the engine's safe
// default and never fails the login.
func (e *Evaluator) Classify(ctx context.Context, userID, fingerprint, ip string, loc *sessiondomain.Location) (engine.Classification, error) {
	input := engine.ClassifyInput{
		IPAddress:      ip,
		GeoThresholdKm: e.geoThresholdKm,
	}

	rec, err := e.trustRepo.Get(ctx, userID, fingerprint)
	if err != nil {
		return engine.Classification{}, err
	}
	if rec != nil {
		input.KnownDevice = true
		input.HasVerifiedRecord = rec.Verified()
	} else {
		count, err := e.trustRepo.CountByUser(ctx, userID)
		if err != nil {
			return engine.Classification{}, err
		}
		if count == 0 {
			hasSessions, err := e.sessions.HasAnyForUser(ctx, userID)
			if err != nil {
				return engine.Classification{}, err
			}
			input.FirstEver = !hasSessions
		}
	}

	if loc != nil && !input.HasVerifiedRecord && !input.FirstEver {
		trusted, err := e.sessions.ListTrustedLocations(ctx, userID)
		if err != nil {
			return engine.Classification{}, err
		}
		if d, ok := engine.MinDistanceKm(*loc, trusted); ok {
			input.GeoKnown = true
			input.MinTrustedDistanceKm = d
		}
	}

	result, err := e.engine.Classify(ctx, input)
	if err != nil {
		e.logger.Warn("trust classification failed, treating device as new",
			"user_id", userID, "error", err)
		return engine.Classification{State: sessiondomain.TrustStateNew, VerificationRequired: true}, nil
	}
	return result, nil
}

// EnsureRecord creates the trust record for the pair if it does not exist yet.
// Called on session creation so the pair's first-seen time is preserved.
func (e *Evaluator) EnsureRecord(ctx context.Context, userID, fingerprint string) error {
	return e.trustRepo.Ensure(ctx, &domain.TrustRecord{
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		FirstSeen:         e.nowF(),
	})
}

// RecordVerifiedLogin marks a successful explicit verification for the pair.
func (e *Evaluator) RecordVerifiedLogin(ctx context.Context, userID, fingerprint string) error {
	return e.trustRepo.RecordVerifiedLogin(ctx, userID, fingerprint, e.nowF())
}

// ListDevices returns the user's trust records, oldest first seen first.
func (e *Evaluator) ListDevices(ctx context.Context, userID string) ([]*domain.TrustRecord, error) {
	return e.trustRepo.ListByUser(ctx, userID)
}

// ForgetDevice deletes the pair's trust record. The next login from the device
// classifies as new again. Returns ErrDeviceNotFound when no record exists.
func (e *Evaluator) ForgetDevice(ctx context.Context, userID, fingerprint string) error {
	deleted, err := e.trustRepo.Delete(ctx, userID, fingerprint)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrDeviceNotFound
	}
	return nil
}
