package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gaini88088/expert-pancake/internal/session/domain"
)

// MemoryRepository is an in-memory Repository used in dev mode (no DATABASE_URL)
// and in tests. All methods copy sessions in and out so callers never share
// storage with each other.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

// GetByID returns the session for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

// ListActiveByUser returns the user's non-revoked sessions, most recently active first.
func (r *MemoryRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActiveAt.Equal(out[j].LastActiveAt) {
			return out[i].LastActiveAt.After(out[j].LastActiveAt)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// HasAnyForUser reports whether any session row exists for the user, revoked or not.
func (r *MemoryRepository) HasAnyForUser(ctx context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ListTrustedLocations returns distinct known locations of the user's trusted sessions.
func (r *MemoryRepository) ListTrustedLocations(ctx context.Context, userID string) ([]domain.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[domain.Location]struct{})
	var out []domain.Location
	for _, s := range r.sessions {
		if s.UserID != userID || s.TrustState != domain.TrustStateTrusted || s.Location == nil {
			continue
		}
		if _, dup := seen[*s.Location]; dup {
			continue
		}
		seen[*s.Location] = struct{}{}
		out = append(out, *s.Location)
	}
	return out, nil
}

// Create persists the session. The session must have ID set.
func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = copySession(s)
	return nil
}

// Revoke marks the session revoked at the given time. Missing or already
// revoked sessions are left untouched.
func (r *MemoryRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	t := at
	s.RevokedAt = &t
	return nil
}

// UpdateLastActive advances the session's last-active timestamp; it never moves it backwards.
func (r *MemoryRepository) UpdateLastActive(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	if at.After(s.LastActiveAt) {
		s.LastActiveAt = at
	}
	return nil
}

// UpdateTrustState sets the session's trust state.
func (r *MemoryRepository) UpdateTrustState(ctx context.Context, id string, state domain.TrustState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.TrustState = state
	}
	return nil
}

// ListStale returns active sessions of the given class idle since before cutoff.
func (r *MemoryRepository) ListStale(ctx context.Context, class domain.DeviceClass, cutoff time.Time) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.DeviceClass == class && s.RevokedAt == nil && s.LastActiveAt.Before(cutoff) {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

// ListStaleUnclassified returns active sessions of unrecognized classes idle since before cutoff.
func (r *MemoryRepository) ListStaleUnclassified(ctx context.Context, cutoff time.Time) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if !s.DeviceClass.Valid() && s.RevokedAt == nil && s.LastActiveAt.Before(cutoff) {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

// PurgeRevokedBefore deletes sessions revoked before cutoff and returns the removed count.
func (r *MemoryRepository) PurgeRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.RevokedAt != nil && s.RevokedAt.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func copySession(s *domain.Session) *domain.Session {
	c := *s
	if s.Location != nil {
		loc := *s.Location
		c.Location = &loc
	}
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}
