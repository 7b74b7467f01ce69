package domain

import "time"

// TrustRecord is the durable trust history for one (user, device fingerprint)
// pair. It outlives individual sessions and is removed only by an explicit
// forget-device action.
type TrustRecord struct {
	UserID             string
	DeviceFingerprint  string
	FirstSeen          time.Time
	VerifiedLoginCount int
	LastVerifiedAt     *time.Time // nil until the first verified login
}

// Verified reports whether the device has at least one verified login.
func (r *TrustRecord) Verified() bool {
	return r.VerifiedLoginCount >= 1
}
