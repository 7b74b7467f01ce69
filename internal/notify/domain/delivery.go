package domain

import "time"

// Delivery outcomes recorded by the worker.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

// DeliveryRecord is one delivery attempt of a consumed event, kept so
// support can answer "was the user told".
type DeliveryRecord struct {
	ID        int64
	EventID   string
	UserID    string
	EventType string
	Channel   string // webhook or log
	Outcome   string
	Detail    string // error text when failed
	CreatedAt time.Time
}
