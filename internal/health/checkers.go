// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/bgpsim/internal/session"
)

// SessionsChecker reports degraded while some sessions are not valid and
// unhealthy once none is.
type SessionsChecker struct {
	snapshots func() []session.Snapshot
}

// NewSessionsChecker creates a checker over the supervisor's snapshots.
func NewSessionsChecker(snapshots func() []session.Snapshot) *SessionsChecker {
	return &SessionsChecker{snapshots: snapshots}
}

func (c *SessionsChecker) Name() string { return "sessions" }

func (c *SessionsChecker) Check(_ context.Context) CheckResult {
	snaps := c.snapshots()
	if len(snaps) == 0 {
		return CheckResult{Status: StatusUnhealthy, Message: "no sessions"}
	}
	valid := 0
	for _, s := range snaps {
		if s.Valid {
			valid++
		}
	}
	msg := fmt.Sprintf("%d/%d sessions valid", valid, len(snaps))
	switch {
	case valid == len(snaps):
		return CheckResult{Status: StatusHealthy, Message: msg}
	case valid == 0:
		return CheckResult{Status: StatusUnhealthy, Message: msg}
	default:
		return CheckResult{Status: StatusDegraded, Message: msg}
	}
}

// LoopChecker watches the supervisor loop's heartbeat. The loop is
// unhealthy before its first cycle and once cycles stop for longer than
// the allowed staleness.
type LoopChecker struct {
	maxAge time.Duration
	last   func() time.Time
	now    func() time.Time
}

// NewLoopChecker creates a loop checker. last reports the time of the most
// recent cycle on the same clock as now; now defaults to time.Now.
func NewLoopChecker(maxAge time.Duration, last, now func() time.Time) *LoopChecker {
	if now == nil {
		now = time.Now
	}
	return &LoopChecker{maxAge: maxAge, last: last, now: now}
}

func (c *LoopChecker) Name() string { return "supervisor_loop" }

func (c *LoopChecker) Check(_ context.Context) CheckResult {
	last := c.last()
	if last.IsZero() {
		return CheckResult{Status: StatusUnhealthy, Message: "no supervisor cycle yet"}
	}
	if age := c.now().Sub(last); c.maxAge > 0 && age > c.maxAge {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("last cycle %s ago", age.Round(time.Millisecond)),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "supervisor cycling"}
}
