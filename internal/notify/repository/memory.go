package repository

import (
	"context"
	"sync"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

// MemoryRepository is an in-memory delivery log for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []*domain.DeliveryRecord
	nextID  int64
}

// NewMemoryRepository returns an empty in-memory delivery log.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

// Save appends the record and sets rec.ID.
func (r *MemoryRepository) Save(_ context.Context, rec *domain.DeliveryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = r.nextID
	r.nextID++
	stored := *rec
	r.records = append(r.records, &stored)
	return nil
}

// ListRecentByUser returns the user's latest records, newest first.
func (r *MemoryRepository) ListRecentByUser(_ context.Context, userID string, limit int32) ([]*domain.DeliveryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.DeliveryRecord
	for i := len(r.records) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		if r.records[i].UserID != userID {
			continue
		}
		rec := *r.records[i]
		out = append(out, &rec)
	}
	return out, nil
}
