// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSimulated_FiresInDeadlineOrder(t *testing.T) {
	c := NewSimulated(epoch)
	var order []string
	var seen []time.Duration

	record := func(name string) func() {
		return func() {
			order = append(order, name)
			seen = append(seen, c.Now().Sub(epoch))
		}
	}
	c.AfterFunc(30*time.Second, record("c"))
	c.AfterFunc(10*time.Second, record("a"))
	c.AfterFunc(20*time.Second, record("b1"))
	c.AfterFunc(20*time.Second, record("b2"))

	n := c.Advance(25 * time.Second)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b1", "b2"}, order)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 20 * time.Second}, seen)
	assert.Equal(t, epoch.Add(25*time.Second), c.Now())
	assert.Equal(t, 1, c.Pending())

	next, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(30*time.Second), next)
}

func TestSimulated_StopRemovesPendingCallback(t *testing.T) {
	c := NewSimulated(epoch)
	var fired atomic.Int32
	h := c.AfterFunc(time.Second, func() { fired.Add(1) })

	assert.True(t, h.Stop())
	assert.False(t, h.Stop(), "second stop is a no-op")
	c.Advance(time.Minute)
	assert.Zero(t, fired.Load())
	assert.Zero(t, c.Pending())
}

func TestSimulated_StopAfterFireReportsFalse(t *testing.T) {
	c := NewSimulated(epoch)
	h := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, h.Stop())
}

func TestSimulated_CallbackMayRescheduleWithinWindow(t *testing.T) {
	c := NewSimulated(epoch)
	var ticks []time.Duration
	var tick func()
	tick = func() {
		ticks = append(ticks, c.Now().Sub(epoch))
		c.AfterFunc(60*time.Second, tick)
	}
	c.AfterFunc(60*time.Second, tick)

	c.Advance(200 * time.Second)
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second, 180 * time.Second}, ticks)
	assert.Equal(t, 1, c.Pending())
}

func TestSimulated_AdvanceToNeverMovesBackwards(t *testing.T) {
	c := NewSimulated(epoch)
	c.Advance(time.Minute)
	c.AdvanceTo(epoch)
	assert.Equal(t, epoch.Add(time.Minute), c.Now())
}

func TestSimulated_NonPositiveDelayRunsOnNextAdvance(t *testing.T) {
	c := NewSimulated(epoch)
	var fired bool
	c.AfterFunc(-time.Second, func() { fired = true })
	c.Advance(0)
	assert.True(t, fired)
}

func TestReal_AfterFuncFires(t *testing.T) {
	c := Real()
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real clock callback did not fire")
	}
	assert.False(t, c.Now().IsZero())
}
