package domain

import "time"

// Challenge is a pending 6-digit verification bound to one session. Only the
// code's SHA-256 hash is stored; the plain code exists in memory at issue
// time and in the delivery channel.
type Challenge struct {
	ID        string
	UserID    string
	SessionID string
	CodeHash  string
	Attempts  int32
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
