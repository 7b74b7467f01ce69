package repository

import (
	"context"

	"github.com/gaini88088/expert-pancake/internal/identity/domain"
)

// Repository defines persistence for users.
type Repository interface {
	// GetByID returns the user for id, or nil if not found. Returns an error
	// only for database failures, not for missing rows.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail returns the user for email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	// UpdateTOTPSecret stores the enrolled authenticator secret. An empty
	// secret clears the enrollment.
	UpdateTOTPSecret(ctx context.Context, userID, secret string) error
}
