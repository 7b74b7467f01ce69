package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/gaini88088/expert-pancake/internal/notify"
	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

// NewEventNotifier returns a notifier that forwards session lifecycle events
// to the OTLP logs pipeline as structured log records. A nil provider yields
// a no-op notifier, so callers can wire it unconditionally.
func NewEventNotifier(provider *sdklog.LoggerProvider) notify.Notifier {
	if provider == nil {
		return noopNotifier{}
	}
	return &eventNotifier{logger: provider.Logger("expert-pancake.notify")}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, *domain.Event) error { return nil }

type eventNotifier struct {
	logger otellog.Logger
}

// Notify emits the event as one log record. Sensitive values stay out of the
// record; they must never leave the process.
func (n *eventNotifier) Notify(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue(string(event.Type)))
	rec.AddAttributes(
		otellog.String("event_id", event.ID),
		otellog.String("event_type", string(event.Type)),
		otellog.String("user_id", event.UserID),
	)
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.DeviceFingerprint != "" {
		rec.AddAttributes(otellog.String("device_fingerprint", event.DeviceFingerprint))
	}
	if event.DeviceClass != "" {
		rec.AddAttributes(otellog.String("device_class", event.DeviceClass))
	}
	if event.IPAddress != "" {
		rec.AddAttributes(otellog.String("ip", event.IPAddress))
	}
	for k, v := range event.Meta {
		rec.AddAttributes(otellog.String("meta_"+k, v))
	}
	n.logger.Emit(ctx, rec)
	return nil
}
