package notify

import (
	"context"
	"errors"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

// MultiNotifier fans one event out to several channels, e.g. Kafka plus the
// OTLP log pipeline. Every notifier sees every event; failures are collected
// rather than short-circuiting.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier returns a notifier over the given channels. Nil entries
// are skipped. With zero or one usable channel it degrades gracefully: the
// dispatcher still gets a valid Notifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify delivers the event to every channel and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, event *domain.Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
