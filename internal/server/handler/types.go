package handler

import (
	"time"

	identitydomain "github.com/gaini88088/expert-pancake/internal/identity/domain"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
	trustdomain "github.com/gaini88088/expert-pancake/internal/trust/domain"
)

// locationJSON is the wire shape of an approximate network origin.
type locationJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// sessionJSON is the wire shape of a session.
type sessionJSON struct {
	ID                string        `json:"id"`
	DeviceFingerprint string        `json:"deviceFingerprint"`
	DeviceClass       string        `json:"deviceClass"`
	TrustState        string        `json:"trustState"`
	IPAddress         string        `json:"ip,omitempty"`
	Location          *locationJSON `json:"location,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	LastActiveAt      time.Time     `json:"lastActiveAt"`
	Current           bool          `json:"current"`
}

func toSessionJSON(s *domain.Session) sessionJSON {
	out := sessionJSON{
		ID:                s.ID,
		DeviceFingerprint: s.DeviceFingerprint,
		DeviceClass:       string(s.DeviceClass),
		TrustState:        string(s.TrustState),
		IPAddress:         s.IPAddress,
		CreatedAt:         s.CreatedAt,
		LastActiveAt:      s.LastActiveAt,
		Current:           s.IsCurrent,
	}
	if s.Location != nil {
		out.Location = &locationJSON{Lat: s.Location.Lat, Lon: s.Location.Lon}
	}
	return out
}

func toSessionListJSON(sessions []*domain.Session) []sessionJSON {
	out := make([]sessionJSON, len(sessions))
	for i, s := range sessions {
		out[i] = toSessionJSON(s)
	}
	return out
}

// userJSON is the wire shape of an account. Credential material never
// leaves the service.
type userJSON struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserJSON(u *identitydomain.User) userJSON {
	return userJSON{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}

// deviceJSON is the wire shape of a known-device trust record.
type deviceJSON struct {
	DeviceFingerprint  string     `json:"deviceFingerprint"`
	FirstSeen          time.Time  `json:"firstSeen"`
	VerifiedLoginCount int        `json:"verifiedLoginCount"`
	LastVerifiedAt     *time.Time `json:"lastVerifiedAt,omitempty"`
	Verified           bool       `json:"verified"`
}

func toDeviceJSON(r *trustdomain.TrustRecord) deviceJSON {
	return deviceJSON{
		DeviceFingerprint:  r.DeviceFingerprint,
		FirstSeen:          r.FirstSeen,
		VerifiedLoginCount: r.VerifiedLoginCount,
		LastVerifiedAt:     r.LastVerifiedAt,
		Verified:           r.Verified(),
	}
}
