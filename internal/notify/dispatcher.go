package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

// dispatchTimeout is the max time allowed for one delivery attempt pair.
// Used by Dispatch and by ShutdownDrainDuration.
const dispatchTimeout = 5 * time.Second

// ShutdownDrainDuration is how long main should wait during shutdown so
// in-flight dispatches can finish. Must be >= dispatchTimeout.
const ShutdownDrainDuration = dispatchTimeout

// Dispatcher runs deliveries in the background so callers never wait on the
// notification channel. A failed delivery is retried once, then dropped with
// an error log.
type Dispatcher struct {
	notifier   Notifier
	logger     *slog.Logger
	wg         sync.WaitGroup
	dispatched metric.Int64Counter
}

// NewDispatcher returns a dispatcher over the given notifier.
func NewDispatcher(n Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter("github.com/gaini88088/expert-pancake/internal/notify")
	dispatched, err := meter.Int64Counter("notifications.dispatched",
		metric.WithDescription("Notification dispatch outcomes"))
	if err != nil {
		otel.Handle(err)
	}
	return &Dispatcher{
		notifier:   n,
		logger:     logger.With("component", "notify"),
		dispatched: dispatched,
	}
}

// Dispatch hands the event to the notifier in a goroutine on a detached
// context, so cancellation of the request that produced the event does not
// abort the delivery. Errors are logged, never returned.
func (d *Dispatcher) Dispatch(event *domain.Event) {
	if d == nil || d.notifier == nil || event == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		err := d.notifier.Notify(ctx, event)
		if err == nil {
			d.count(ctx, event, "delivered")
			return
		}
		d.logger.Warn("delivery failed, retrying",
			"event_id", event.ID, "event_type", string(event.Type), "error", err)
		if err := d.notifier.Notify(ctx, event); err != nil {
			d.logger.Error("delivery dropped after retry",
				"event_id", event.ID, "event_type", string(event.Type), "error", err)
			d.count(ctx, event, "dropped")
			return
		}
		d.count(ctx, event, "delivered")
	}()
}

func (d *Dispatcher) count(ctx context.Context, event *domain.Event, outcome string) {
	d.dispatched.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", string(event.Type)),
		attribute.String("outcome", outcome),
	))
}

// Drain blocks until all in-flight dispatches finish or ctx expires.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
