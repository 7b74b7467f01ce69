package repository

import (
	"context"
	"time"

	"github.com/gaini88088/expert-pancake/internal/session/domain"
)

// Repository defines persistence for sessions.
//
// Termination is a soft revoke: rows keep their revoked_at timestamp until the
// sweeper purges them, so trust history (locations of previously trusted
// sessions) stays queryable for a retention window.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ListActiveByUser returns the user's non-revoked sessions ordered by
	// last_active_at descending.
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// HasAnyForUser reports whether any session row (active or revoked) exists
	// for the user.
	HasAnyForUser(ctx context.Context, userID string) (bool, error)
	// ListTrustedLocations returns the distinct known locations of the user's
	// trusted sessions, including revoked ones still within retention.
	ListTrustedLocations(ctx context.Context, userID string) ([]domain.Location, error)
	// Create persists the session. The session must have ID set.
	Create(ctx context.Context, s *domain.Session) error
	// Revoke marks the session revoked at the given time. Revoking an already
	// revoked session changes nothing.
	Revoke(ctx context.Context, id string, at time.Time) error
	// UpdateLastActive advances the session's last_active_at. The stored value
	// never moves backwards.
	UpdateLastActive(ctx context.Context, id string, at time.Time) error
	// UpdateTrustState sets the session's trust state.
	UpdateTrustState(ctx context.Context, id string, state domain.TrustState) error
	// ListStale returns active sessions of the given class whose
	// last_active_at is before cutoff.
	ListStale(ctx context.Context, class domain.DeviceClass, cutoff time.Time) ([]*domain.Session, error)
	// ListStaleUnclassified returns active sessions whose class is none of the
	// recognized ones and whose last_active_at is before cutoff.
	ListStaleUnclassified(ctx context.Context, cutoff time.Time) ([]*domain.Session, error)
	// PurgeRevokedBefore deletes sessions revoked before cutoff and returns
	// how many rows were removed.
	PurgeRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
