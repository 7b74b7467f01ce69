// Package notify hands session lifecycle events to an external channel.
// Delivery is best-effort everywhere: a session mutation that already
// happened is never rolled back because its notification failed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

// ErrNotifierUnavailable wraps delivery handoff failures. Callers log it and
// move on; it never maps to a request failure.
var ErrNotifierUnavailable = errors.New("notifier unavailable")

// Notifier delivers a single event. Implementations may block briefly; use
// the Dispatcher for fire-and-forget delivery from request paths.
type Notifier interface {
	Notify(ctx context.Context, event *domain.Event) error
}

// LogNotifier writes events to the structured log. It stands in for a real
// channel in development and is the only notifier allowed to print the
// event's sensitive values.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs every event at info level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Notify logs the event. It never fails.
func (n *LogNotifier) Notify(_ context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	if !event.Type.Valid() {
		return fmt.Errorf("unrecognized event type %q", event.Type)
	}
	attrs := []any{
		"event_id", event.ID,
		"event_type", string(event.Type),
		"user_id", event.UserID,
	}
	if event.SessionID != "" {
		attrs = append(attrs, "session_id", event.SessionID)
	}
	if event.DeviceFingerprint != "" {
		attrs = append(attrs, "device_fingerprint", event.DeviceFingerprint)
	}
	if event.IPAddress != "" {
		attrs = append(attrs, "ip", event.IPAddress)
	}
	for k, v := range event.Meta {
		attrs = append(attrs, "meta_"+k, v)
	}
	for k, v := range event.Sensitive {
		attrs = append(attrs, "dev_"+k, v)
	}
	n.logger.Info("notification", attrs...)
	return nil
}
