// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Simulated is a discrete-event clock. Time only moves when Advance or
// AdvanceTo is called; due callbacks run synchronously on the advancing
// goroutine in deadline order, ties broken by scheduling order.
// Advance must not be called concurrently with itself.
type Simulated struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue eventQueue
}

// NewSimulated returns a simulated clock starting at start.
func NewSimulated(start time.Time) *Simulated {
	return &Simulated{now: start}
}

// Now returns the current simulated time. While a callback runs, Now equals
// that callback's deadline.
func (c *Simulated) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f at Now()+d. Non-positive d schedules f for the
// current instant; it runs on the next Advance.
func (c *Simulated) AfterFunc(d time.Duration, f func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	c.seq++
	ev := &event{at: c.now.Add(d), seq: c.seq, f: f, clock: c, index: -1}
	heap.Push(&c.queue, ev)
	return ev
}

// Advance moves the clock forward by d, firing every callback due on the way.
// It returns the number of callbacks that ran.
func (c *Simulated) Advance(d time.Duration) int {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	return c.AdvanceTo(target)
}

// AdvanceTo moves the clock to target (never backwards), firing due callbacks.
// Callbacks scheduled by callbacks run too if they fall inside the window.
func (c *Simulated) AdvanceTo(target time.Time) int {
	fired := 0
	for {
		c.mu.Lock()
		if len(c.queue) == 0 || c.queue[0].at.After(target) {
			if target.After(c.now) {
				c.now = target
			}
			c.mu.Unlock()
			return fired
		}
		ev := heap.Pop(&c.queue).(*event)
		if ev.at.After(c.now) {
			c.now = ev.at
		}
		c.mu.Unlock()

		ev.f()
		fired++
	}
}

// Pending returns the number of scheduled callbacks.
func (c *Simulated) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Next returns the deadline of the earliest scheduled callback.
func (c *Simulated) Next() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return time.Time{}, false
	}
	return c.queue[0].at, true
}

type event struct {
	at    time.Time
	seq   uint64
	f     func()
	clock *Simulated
	index int // heap position, -1 once popped or removed
}

func (e *event) Stop() bool {
	c := e.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.index < 0 {
		return false
	}
	heap.Remove(&c.queue, e.index)
	return true
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *eventQueue) Push(x any) {
	ev := x.(*event)
	ev.index = len(*q)
	*q = append(*q, ev)
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*q = old[:n-1]
	return ev
}

var _ Clock = (*Simulated)(nil)
