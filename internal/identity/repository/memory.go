package repository

import (
	"context"
	"sync"
	"time"

	"github.com/gaini88088/expert-pancake/internal/identity/domain"
)

// MemoryRepository is an in-memory Repository used in dev mode (no DATABASE_URL)
// and in tests. All methods copy users in and out.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*domain.User)}
}

// GetByID returns the user for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

// GetByEmail returns the user for email, or nil if not found.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

// Create persists the user. The user must have ID set.
func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = copyUser(u)
	return nil
}

// UpdatePasswordHash updates the password hash for the user with the given id.
func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.PasswordHash = passwordHash
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// UpdateTOTPSecret stores the enrolled authenticator secret for the user.
func (r *MemoryRepository) UpdateTOTPSecret(ctx context.Context, userID, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.TOTPSecret = secret
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}
