package domain

import "time"

// DeviceClass identifies the kind of client a session was created from.
type DeviceClass string

const (
	DeviceClassMobileApp  DeviceClass = "mobile-app"
	DeviceClassWebBrowser DeviceClass = "web-browser"
	DeviceClassDesktopApp DeviceClass = "desktop-app"
)

// Valid reports whether c is one of the recognized device classes.
func (c DeviceClass) Valid() bool {
	switch c {
	case DeviceClassMobileApp, DeviceClassWebBrowser, DeviceClassDesktopApp:
		return true
	}
	return false
}

// TrustState is the trust classification of a session at creation time.
// A suspicious session is only upgraded through an explicit verification step.
type TrustState string

const (
	TrustStateNew        TrustState = "new"
	TrustStateTrusted    TrustState = "trusted"
	TrustStateSuspicious TrustState = "suspicious"
)

// Valid reports whether t is one of the recognized trust states.
func (t TrustState) Valid() bool {
	switch t {
	case TrustStateNew, TrustStateTrusted, TrustStateSuspicious:
		return true
	}
	return false
}

// Location is an approximate network origin, advisory only.
type Location struct {
	Lat float64
	Lon float64
}

// Session represents one authenticated device/app instance for a user.
type Session struct {
	ID                string
	UserID            string
	DeviceFingerprint string
	DeviceClass       DeviceClass
	TrustState        TrustState
	IPAddress         string
	Location          *Location // nil when unknown
	CreatedAt         time.Time
	LastActiveAt      time.Time
	RevokedAt         *time.Time // nil when not revoked

	// IsCurrent marks the session that initiated the request being served.
	// Computed per call against the caller's session id; never persisted.
	IsCurrent bool `json:"-"`
}

// Active reports whether the session has not been revoked.
func (s *Session) Active() bool {
	return s.RevokedAt == nil
}

// IdleFor returns how long the session has been inactive as of now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActiveAt)
}

// ExpiryPolicy holds per-class inactivity thresholds for the sweeper.
type ExpiryPolicy struct {
	Web     time.Duration
	Mobile  time.Duration
	Desktop time.Duration
	Default time.Duration
}

// ThresholdFor returns the inactivity threshold for the given class.
// Unrecognized classes fall back to Default.
func (p ExpiryPolicy) ThresholdFor(class DeviceClass) time.Duration {
	switch class {
	case DeviceClassWebBrowser:
		return p.Web
	case DeviceClassMobileApp:
		return p.Mobile
	case DeviceClassDesktopApp:
		return p.Desktop
	default:
		return p.Default
	}
}

// Expired reports whether the session's inactivity exceeds the policy threshold for its class.
func (p ExpiryPolicy) Expired(s *Session, now time.Time) bool {
	return s.IdleFor(now) > p.ThresholdFor(s.DeviceClass)
}
