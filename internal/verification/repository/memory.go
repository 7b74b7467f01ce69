package repository

import (
	"context"
	"sync"

	"github.com/gaini88088/expert-pancake/internal/verification/domain"
)

// MemoryRepository is an in-memory Repository used in dev mode and in tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	challenges map[string]*domain.Challenge
}

// NewMemoryRepository returns an empty in-memory challenge repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{challenges: make(map[string]*domain.Challenge)}
}

// Create persists the challenge. The challenge must have ID set.
func (r *MemoryRepository) Create(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.challenges[c.ID] = &cp
	return nil
}

// GetBySession returns the newest challenge for the user's session, or nil if none exists.
func (r *MemoryRepository) GetBySession(ctx context.Context, userID, sessionID string) (*domain.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var newest *domain.Challenge
	for _, c := range r.challenges {
		if c.UserID != userID || c.SessionID != sessionID {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

// IncrementAttempts adds one to the challenge's attempt count and returns the
// new value, or 0 when the challenge no longer exists.
func (r *MemoryRepository) IncrementAttempts(ctx context.Context, id string) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return 0, nil
	}
	c.Attempts++
	return c.Attempts, nil
}

// Delete removes the challenge by id.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.challenges, id)
	return nil
}
