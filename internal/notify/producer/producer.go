// Package producer publishes session lifecycle events to a message broker
// for the delivery worker to consume.
package producer

import (
	"context"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

// Producer emits lifecycle events. Callers use it best-effort: log and
// ignore errors.
type Producer interface {
	// Emit publishes a single event. Implementations may block briefly.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}
