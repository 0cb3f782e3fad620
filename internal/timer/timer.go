// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package timer implements a cancellable single-shot deadline driven by a
// clock.Clock. A Timer only schedules; its owner decides what a firing means.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/bgpsim/internal/clock"
)

// ErrNonPositiveDuration is returned when Arm is asked for a zero or negative delay.
var ErrNonPositiveDuration = errors.New("timer duration must be positive")

// State is the lifecycle position of a Timer.
type State int

const (
	Unarmed State = iota
	Armed
	Fired
)

func (s State) String() string {
	switch s {
	case Unarmed:
		return "unarmed"
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Firing is delivered to the owner when a deadline elapses. Gen identifies
// the Arm call that produced it.
type Firing struct {
	Gen      uint64
	Deadline time.Time
}

// Timer is owned by exactly one component and never shared.
type Timer struct {
	name   string
	clock  clock.Clock
	notify func(Firing)

	mu       sync.Mutex
	gen      uint64
	state    State
	deadline time.Time
	handle   clock.Handle
}

// New creates an unarmed timer. notify runs once per elapsed deadline,
// outside the timer's lock, so it may re-arm the same timer.
func New(name string, c clock.Clock, notify func(Firing)) *Timer {
	return &Timer{name: name, clock: c, notify: notify}
}

// Name returns the label the timer was created with.
func (t *Timer) Name() string { return t.name }

// Arm schedules a firing d from now, replacing any pending deadline.
func (t *Timer) Arm(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("arm %s timer with %s: %w", t.name, d, ErrNonPositiveDuration)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != nil {
		t.handle.Stop()
	}
	t.gen++
	gen := t.gen
	t.state = Armed
	t.deadline = t.clock.Now().Add(d)
	t.handle = t.clock.AfterFunc(d, func() { t.expire(gen) })
	return nil
}

// Cancel unarms the timer without a firing. It reports whether a pending
// deadline was dropped.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := t.state == Armed
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
	// Bumping the generation turns any firing already in flight stale.
	t.gen++
	t.state = Unarmed
	t.deadline = time.Time{}
	return pending
}

// Current reports whether f belongs to the most recent Arm call and no
// Arm or Cancel happened since.
func (t *Timer) Current(f Firing) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return f.Gen == t.gen
}

// Deadline returns the pending deadline, if armed.
func (t *Timer) Deadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Armed {
		return time.Time{}, false
	}
	return t.deadline, true
}

// State returns the current lifecycle state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != Armed {
		t.mu.Unlock()
		return
	}
	t.state = Fired
	t.handle = nil
	f := Firing{Gen: gen, Deadline: t.deadline}
	t.mu.Unlock()

	if t.notify != nil {
		t.notify(f)
	}
}
