// Package timeout provides a process-wide registry of deferred callbacks
// keyed by interaction id. It carries no business knowledge: the assignment
// engine supplies the callback, the registry guarantees a given id never has
// two competing timers.
package timeout

import (
	"sync"
	"time"

	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// Scheduler holds one pending timer per interaction id.
type Scheduler struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	log    *logger.Logger
}

// NewScheduler creates an empty scheduler. One instance lives for the whole
// process; Shutdown releases whatever is still pending.
func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[uuid.UUID]*time.Timer),
		log:    log,
	}
}

// Arm schedules fn to run after delay. Re-arming an id cancels the previous
// timer first, so an id never carries two timers. The table entry is removed
// before fn runs: a Cancel arriving after expiry is a no-op by construction.
func (s *Scheduler) Arm(id uuid.UUID, delay time.Duration, fn func(uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[id]; ok {
		existing.Stop()
		delete(s.timers, id)
	}

	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, pending := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()

		// A Cancel that won the race already removed the entry; the timer
		// fired anyway because Stop came too late. Do not invoke.
		if !pending {
			return
		}

		s.log.Info("interaction timer fired", "interaction_id", id)
		fn(id)
	})

	s.log.Info("interaction timer armed", "interaction_id", id, "delay", delay.String())
}

// Cancel stops and removes the timer for id. Calling it for an id that was
// never armed, or whose timer already fired, is a no-op.
func (s *Scheduler) Cancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[id]
	if !ok {
		return
	}

	timer.Stop()
	delete(s.timers, id)
	s.log.Info("interaction timer cancelled", "interaction_id", id)
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown stops every pending timer. Fired callbacks already in flight are
// not interrupted.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
