package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gaini88088/expert-pancake/internal/trust/domain"
)

type pairKey struct {
	userID      string
	fingerprint string
}

// MemoryRepository is an in-memory Repository used in dev mode and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[pairKey]*domain.TrustRecord
}

// NewMemoryRepository returns an empty in-memory trust record repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[pairKey]*domain.TrustRecord)}
}

// Get returns the record for the pair, or nil if not found.
func (r *MemoryRepository) Get(ctx context.Context, userID, fingerprint string) (*domain.TrustRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[pairKey{userID, fingerprint}]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

// ListByUser returns all records for the user, oldest first seen first.
func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.TrustRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.TrustRecord
	for key, rec := range r.records {
		if key.userID == userID {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		return out[i].DeviceFingerprint < out[j].DeviceFingerprint
	})
	return out, nil
}

// CountByUser returns how many records exist for the user.
func (r *MemoryRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for key := range r.records {
		if key.userID == userID {
			n++
		}
	}
	return n, nil
}

// Ensure creates the record if it does not exist yet. An existing record is left untouched.
func (r *MemoryRepository) Ensure(ctx context.Context, rec *domain.TrustRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{rec.UserID, rec.DeviceFingerprint}
	if _, exists := r.records[key]; exists {
		return nil
	}
	r.records[key] = copyRecord(rec)
	return nil
}

// RecordVerifiedLogin increments the pair's verified login count, creating the record when absent.
func (r *MemoryRepository) RecordVerifiedLogin(ctx context.Context, userID, fingerprint string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{userID, fingerprint}
	rec, ok := r.records[key]
	if !ok {
		t := at
		r.records[key] = &domain.TrustRecord{
			UserID:             userID,
			DeviceFingerprint:  fingerprint,
			FirstSeen:          at,
			VerifiedLoginCount: 1,
			LastVerifiedAt:     &t,
		}
		return nil
	}
	rec.VerifiedLoginCount++
	t := at
	rec.LastVerifiedAt = &t
	return nil
}

// Delete removes the record and reports whether one existed.
func (r *MemoryRepository) Delete(ctx context.Context, userID, fingerprint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{userID, fingerprint}
	if _, ok := r.records[key]; !ok {
		return false, nil
	}
	delete(r.records, key)
	return true, nil
}

func copyRecord(rec *domain.TrustRecord) *domain.TrustRecord {
	c := *rec
	if rec.LastVerifiedAt != nil {
		t := *rec.LastVerifiedAt
		c.LastVerifiedAt = &t
	}
	return &c
}
