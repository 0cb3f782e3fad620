// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package transport

import (
	"context"
	"time"

	"github.com/ManuGH/bgpsim/internal/bgp"
)

// DefaultPublishTimeout bounds a single Emit.
const DefaultPublishTimeout = 50 * time.Millisecond

// Sink publishes every emitted message on its interface topic. It satisfies
// session.MessageSink.
type Sink struct {
	bus     *MemoryBus
	timeout time.Duration
}

// NewSink wraps bus. A non-positive timeout selects DefaultPublishTimeout.
func NewSink(bus *MemoryBus, timeout time.Duration) *Sink {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Sink{bus: bus, timeout: timeout}
}

// Emit publishes msg on Topic(iface). It never blocks longer than the
// sink's timeout.
func (s *Sink) Emit(msg bgp.Message, iface int) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	msg.Interface = iface
	return s.bus.Publish(ctx, Topic(iface), msg)
}
