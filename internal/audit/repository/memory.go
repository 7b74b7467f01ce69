package repository

import (
	"context"
	"sync"

	"github.com/gaini88088/expert-pancake/internal/audit/domain"
)

// MemoryRepository is an in-memory audit log for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []*domain.AuditLog
}

// NewMemoryRepository returns an empty in-memory audit log.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// GetByID returns the audit log for id, or nil if not found.
func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.entries {
		if a.ID == id {
			entry := *a
			return &entry, nil
		}
	}
	return nil, nil
}

// ListByUser returns the user's audit logs, newest first.
func (r *MemoryRepository) ListByUser(_ context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*domain.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			entry := *r.entries[i]
			matched = append(matched, &entry)
		}
	}
	if int(offset) >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if int32(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Create appends the entry.
func (r *MemoryRepository) Create(_ context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := *a
	r.entries = append(r.entries, &entry)
	return nil
}
