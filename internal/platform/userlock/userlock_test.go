package userlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestManager_AcquireRelease(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	release, err := m.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	// Lock is free again.
	release, err = m.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release()

	if n := m.active(); n != 0 {
		t.Errorf("active entries = %d after all releases, want 0", n)
	}
}

func TestManager_SerializesSameKey(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	const workers = 8
	const iterations = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				release, err := m.Acquire(ctx, "u1")
				if err != nil {
					t.Errorf("Acquire: %v", err)
					return
				}
				// Unsynchronized increment; the lock is the only protection.
				counter++
				release()
			}
		}()
	}
	wg.Wait()

	if counter != workers*iterations {
		t.Errorf("counter = %d, want %d", counter, workers*iterations)
	}
	if n := m.active(); n != 0 {
		t.Errorf("active entries = %d, want 0", n)
	}
}

func TestManager_IndependentKeys(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	releaseA, err := m.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire u1: %v", err)
	}
	defer releaseA()

	// Holding u1 must not block u2.
	done := make(chan struct{})
	go func() {
		releaseB, err := m.Acquire(ctx, "u2")
		if err != nil {
			t.Errorf("Acquire u2: %v", err)
			return
		}
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire(u2) blocked while u1 was held")
	}
}

func TestManager_AcquireTimesOut(t *testing.T) {
	m := NewManager()

	release, err := m.Acquire(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, "u1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire while held = %v, want DeadlineExceeded", err)
	}
}

func TestManager_WaiterGetsLockAfterRelease(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	release, err := m.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	got := make(chan struct{})
	go func() {
		r, err := m.Acquire(ctx, "u1")
		if err != nil {
			t.Errorf("waiter Acquire: %v", err)
			return
		}
		r()
		close(got)
	}()

	time.Sleep(10 * time.Millisecond)
	release()

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock after release")
	}
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	release, err := m.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
	release() // second call must not panic or unlock someone else's hold

	other, err := m.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer other()

	ctx2, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx2, "u1"); err == nil {
		t.Fatal("double release must not free a lock held by another caller")
	}
}
