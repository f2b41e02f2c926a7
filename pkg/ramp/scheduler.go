package ramp

import (
	"slices"
	"sync"
	"time"
)

// Timer is a pending scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// call stopped the timer (false if it already fired or was stopped).
	Stop() bool
}

// Scheduler arms one-shot callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules on the Go runtime timers.
type SystemScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

var _ Scheduler = SystemScheduler{}

// ManualScheduler is a deterministic Scheduler driven by Advance.
// Callbacks run synchronously on the goroutine calling Advance, in due-time
// order (ties in scheduling order). It is safe for concurrent use.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	due     time.Duration
	seq     uint64
	f       func()
	stopped bool
}

// NewManualScheduler creates a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc schedules f to run d after the current virtual time.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d < 0 {
		d = 0
	}
	s.seq++
	t := &manualTimer{s: s, due: s.now + d, seq: s.seq, f: f}
	s.pending = append(s.pending, t)
	return t
}

// Stop removes the timer if it has not fired yet.
func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.stopped {
		return false
	}
	t.stopped = true
	t.s.pending = slices.DeleteFunc(t.s.pending, func(p *manualTimer) bool { return p == t })
	return true
}

// Advance moves the clock forward by d, firing every timer that falls due
// on the way, including timers scheduled by callbacks during the advance.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.stopped = true
		s.pending = slices.DeleteFunc(s.pending, func(p *manualTimer) bool { return p == next })
		s.now = next.due
		s.mu.Unlock()

		next.f()
	}
}

func (s *ManualScheduler) nextDueLocked(limit time.Duration) *manualTimer {
	var next *manualTimer
	for _, t := range s.pending {
		if t.due > limit {
			continue
		}
		if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

// Now returns the virtual time elapsed since creation.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of armed timers.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

var _ Scheduler = (*ManualScheduler)(nil)
