package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

// countingNotifier records calls and fails the first failUntil attempts.
type countingNotifier struct {
	mu        sync.Mutex
	calls     int
	failUntil int
}

func (n *countingNotifier) Notify(_ context.Context, _ *domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.calls <= n.failUntil {
		return errors.New("channel down")
	}
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_DeliversOnce(t *testing.T) {
	n := &countingNotifier{}
	d := NewDispatcher(n, testLogger())

	d.Dispatch(domain.NewEvent(domain.EventLogin, "user-1"))
	drain(t, d)

	if got := n.count(); got != 1 {
		t.Errorf("notifier calls = %d, want 1", got)
	}
}

func TestDispatcher_RetriesExactlyOnce(t *testing.T) {
	n := &countingNotifier{failUntil: 1}
	d := NewDispatcher(n, testLogger())

	d.Dispatch(domain.NewEvent(domain.EventSecurityAlert, "user-1"))
	drain(t, d)

	if got := n.count(); got != 2 {
		t.Errorf("notifier calls = %d, want 2 (initial + one retry)", got)
	}
}

func TestDispatcher_DropsAfterRetry(t *testing.T) {
	n := &countingNotifier{failUntil: 10}
	d := NewDispatcher(n, testLogger())

	d.Dispatch(domain.NewEvent(domain.EventSessionExpired, "user-1"))
	drain(t, d)

	// Two attempts, never a third, and the caller is never told.
	if got := n.count(); got != 2 {
		t.Errorf("notifier calls = %d, want 2", got)
	}
}

func TestDispatcher_NilEventIsIgnored(t *testing.T) {
	n := &countingNotifier{}
	d := NewDispatcher(n, testLogger())

	d.Dispatch(nil)
	drain(t, d)

	if got := n.count(); got != 0 {
		t.Errorf("notifier calls = %d, want 0", got)
	}
}

func TestLogNotifier_RejectsUnknownType(t *testing.T) {
	n := NewLogNotifier(testLogger())

	event := domain.NewEvent(domain.EventType("gossip"), "user-1")
	if err := n.Notify(context.Background(), event); err == nil {
		t.Error("Notify() error = nil, want unknown event type error")
	}

	if err := n.Notify(context.Background(), domain.NewEvent(domain.EventLogoutAll, "user-1")); err != nil {
		t.Errorf("Notify() error = %v, want nil", err)
	}
}
