// Package repository persists delivery outcomes for consumed events.
package repository

import (
	"context"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

// Repository defines persistence for the delivery log.
type Repository interface {
	// Save persists the record. It sets rec.ID on success.
	Save(ctx context.Context, rec *domain.DeliveryRecord) error
	// ListRecentByUser returns the user's latest delivery records, newest
	// first, up to limit.
	ListRecentByUser(ctx context.Context, userID string, limit int32) ([]*domain.DeliveryRecord, error)
}
