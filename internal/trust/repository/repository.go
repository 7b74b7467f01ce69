package repository

import (
	"context"
	"time"

	"github.com/gaini88088/expert-pancake/internal/trust/domain"
)

// Repository defines persistence for trust records.
type Repository interface {
	// Get returns the record for the pair, or nil if not found.
	Get(ctx context.Context, userID, fingerprint string) (*domain.TrustRecord, error)
	// ListByUser returns all records for the user, oldest first seen first.
	ListByUser(ctx context.Context, userID string) ([]*domain.TrustRecord, error)
	// CountByUser returns how many records exist for the user.
	CountByUser(ctx context.Context, userID string) (int, error)
	// Ensure creates the record if it does not exist yet. Concurrent calls for
	// the same pair result in exactly one record; an existing record is left
	// untouched.
	Ensure(ctx context.Context, rec *domain.TrustRecord) error
	// RecordVerifiedLogin increments the pair's verified login count, creating
	// the record when absent.
	RecordVerifiedLogin(ctx context.Context, userID, fingerprint string, at time.Time) error
	// Delete removes the record and reports whether one existed.
	Delete(ctx context.Context, userID, fingerprint string) (bool, error)
}
