// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package clock provides the time source that drives session timers: the
// wall clock for realtime runs and a discrete-event clock for simulation.
package clock

import "time"

// Clock schedules callbacks against a notion of "now".
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once d has elapsed. f runs on a goroutine owned by
	// the clock and must not assume any caller lock is held.
	AfterFunc(d time.Duration, f func()) Handle
}

// Handle cancels a pending callback. Stop reports whether the callback was
// still pending; false means it already ran or was stopped before.
type Handle interface {
	Stop() bool
}

type realClock struct{}

// Real returns the wall clock backed by time.AfterFunc.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Handle {
	return time.AfterFunc(d, f)
}
