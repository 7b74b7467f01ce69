// Package domain defines the session lifecycle events handed to notifiers.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of lifecycle event being announced.
type EventType string

const (
	EventLogin          EventType = "login"
	EventLogoutAll      EventType = "logoutAll"
	EventSessionExpired EventType = "sessionExpired"
	EventSecurityAlert  EventType = "securityAlert"
)

// Valid reports whether t is one of the recognized event types.
func (t EventType) Valid() bool {
	switch t {
	case EventLogin, EventLogoutAll, EventSessionExpired, EventSecurityAlert:
		return true
	}
	return false
}

// Event is one notification about a user's session. The JSON form is the
// Kafka message payload consumed by the delivery worker.
type Event struct {
	ID                string            `json:"id"`
	UserID            string            `json:"userId"`
	Type              EventType         `json:"eventType"`
	SessionID         string            `json:"sessionId,omitempty"`
	DeviceFingerprint string            `json:"deviceFingerprint,omitempty"`
	DeviceClass       string            `json:"deviceClass,omitempty"`
	IPAddress         string            `json:"ip,omitempty"`
	Meta              map[string]string `json:"meta,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`

	// Sensitive holds values that may appear in local dev logs but must
	// never leave the process. Excluded from the serialized payload.
	Sensitive map[string]string `json:"-"`
}

// NewEvent returns an event of the given type for the user, stamped with a
// fresh id and the current UTC time.
func NewEvent(eventType EventType, userID string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
	}
}

// WithSession fills the session-derived fields and returns the event.
func (e *Event) WithSession(sessionID, fingerprint, class, ip string) *Event {
	e.SessionID = sessionID
	e.DeviceFingerprint = fingerprint
	e.DeviceClass = class
	e.IPAddress = ip
	return e
}

// WithMeta adds one metadata entry and returns the event.
func (e *Event) WithMeta(key, value string) *Event {
	if e.Meta == nil {
		e.Meta = map[string]string{}
	}
	e.Meta[key] = value
	return e
}
