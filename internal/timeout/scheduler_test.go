package timeout

import (
	"sync/atomic"
	"testing"
	"time"

	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(logger.New("development"))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestArmFiresAndRemovesEntry(t *testing.T) {
	s := newTestScheduler()
	id := uuid.New()

	var fired atomic.Int32
	s.Arm(id, 10*time.Millisecond, func(got uuid.UUID) {
		if got != id {
			t.Errorf("callback received %s, want %s", got, id)
		}
		fired.Add(1)
	})

	waitFor(t, func() bool { return fired.Load() == 1 })
	if s.Pending() != 0 {
		t.Fatalf("expected empty table after fire, got %d", s.Pending())
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := newTestScheduler()
	id := uuid.New()

	var fired atomic.Int32
	s.Arm(id, 50*time.Millisecond, func(uuid.UUID) { fired.Add(1) })
	s.Cancel(id)

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("cancelled timer must not fire")
	}
	if s.Pending() != 0 {
		t.Fatalf("expected empty table after cancel, got %d", s.Pending())
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := newTestScheduler()
	id := uuid.New()

	// Never armed: no-op.
	s.Cancel(id)

	var fired atomic.Int32
	s.Arm(id, 10*time.Millisecond, func(uuid.UUID) { fired.Add(1) })
	waitFor(t, func() bool { return fired.Load() == 1 })

	// Already fired: no-op.
	s.Cancel(id)
	s.Cancel(id)
}

func TestRearmReplacesTimer(t *testing.T) {
	s := newTestScheduler()
	id := uuid.New()

	var first, second atomic.Int32
	s.Arm(id, 30*time.Millisecond, func(uuid.UUID) { first.Add(1) })
	s.Arm(id, 10*time.Millisecond, func(uuid.UUID) { second.Add(1) })

	if s.Pending() != 1 {
		t.Fatalf("rearm must keep a single entry, got %d", s.Pending())
	}

	waitFor(t, func() bool { return second.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatal("replaced timer must not fire")
	}
}

func TestShutdownStopsAll(t *testing.T) {
	s := newTestScheduler()

	var fired atomic.Int32
	for i := 0; i < 5; i++ {
		s.Arm(uuid.New(), 50*time.Millisecond, func(uuid.UUID) { fired.Add(1) })
	}
	if s.Pending() != 5 {
		t.Fatalf("expected 5 pending timers, got %d", s.Pending())
	}

	s.Shutdown()
	if s.Pending() != 0 {
		t.Fatalf("expected empty table after shutdown, got %d", s.Pending())
	}

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("no timer may fire after shutdown")
	}
}
