package repository

import (
	"context"
	"time"

	"github.com/gaini88088/expert-pancake/internal/verification/domain"
)

// Repository defines persistence for verification challenges.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	// GetBySession returns the newest challenge for the user's session, or nil
	// if none exists. Returns an error only for database failures, not for
	// missing rows.
	GetBySession(ctx context.Context, userID, sessionID string) (*domain.Challenge, error)
	// IncrementAttempts adds one to the challenge's attempt count and returns
	// the new value. Returns 0 when the challenge no longer exists.
	IncrementAttempts(ctx context.Context, id string) (int32, error)
	Delete(ctx context.Context, id string) error
}

// DefaultCodeTTL is the default verification code expiry.
const DefaultCodeTTL = 10 * time.Minute
