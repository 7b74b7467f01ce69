package notify

import (
	"context"
	"fmt"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
	"github.com/gaini88088/expert-pancake/internal/notify/producer"
)

// ProducerNotifier publishes events through a broker producer. The delivery
// worker picks them up from the topic and fans them out to real channels.
type ProducerNotifier struct {
	producer producer.Producer
}

// NewProducerNotifier adapts p to the Notifier interface.
func NewProducerNotifier(p producer.Producer) *ProducerNotifier {
	return &ProducerNotifier{producer: p}
}

// Notify publishes the event. Handoff failures are wrapped in
// ErrNotifierUnavailable so callers can recognize and absorb them.
func (n *ProducerNotifier) Notify(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	if !event.Type.Valid() {
		return fmt.Errorf("unrecognized event type %q", event.Type)
	}
	if err := n.producer.Emit(ctx, event); err != nil {
		return fmt.Errorf("%w: %v", ErrNotifierUnavailable, err)
	}
	return nil
}
