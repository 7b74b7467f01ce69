package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Compare when the password does not match
// the stored hash.
var ErrPasswordMismatch = errors.New("password mismatch")

// Hasher hashes login passwords with bcrypt at a fixed cost. Build one with
// NewHasher; the zero value hashes at cost 0, which bcrypt rejects.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Zero and negative
// select bcrypt.DefaultCost; out-of-range values are clamped to the bcrypt
// limits.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost reports the effective bcrypt cost after clamping.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns the bcrypt hash of password for storage. The plaintext is not
// retained.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare checks password against a stored bcrypt hash. It returns nil on a
// match, ErrPasswordMismatch when the password differs, and the underlying
// error for malformed hashes.
func (h *Hasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
