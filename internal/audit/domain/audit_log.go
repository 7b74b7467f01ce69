package domain

import "time"

// AuditLog represents one recorded account action.
type AuditLog struct {
	ID        string
	UserID    string
	SessionID string
	Action    string
	Outcome   string
	IP        string
	Detail    string
	CreatedAt time.Time
}
