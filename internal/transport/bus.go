// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package transport moves BGP messages between sessions and whatever sits
// on the far side of an interface. The in-memory bus stands in for the
// forwarding plane; it is not durable.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/bgpsim/internal/bgp"
	xglog "github.com/ManuGH/bgpsim/internal/log"
	"github.com/ManuGH/bgpsim/internal/metrics"
)

// DefaultSubscriberBuffer is the channel capacity of every subscription.
const DefaultSubscriberBuffer = 64

const dropLogEvery = 100

// ErrBusClosed is returned by Publish and Subscribe after Close.
var ErrBusClosed = errors.New("transport bus closed")

// Topic names the per-interface topic, "iface/<n>".
func Topic(iface int) string {
	return "iface/" + strconv.Itoa(iface)
}

// Subscription receives the messages published on one topic.
type Subscription interface {
	C() <-chan bgp.Message
	Close() error
}

// MemoryBus is an in-process pub/sub. Delivery to each subscriber blocks
// until the subscriber has room, the subscription or bus closes, or the
// publish context is done. A data channel is only closed once no publish
// holds the read lock, so closing never races a send.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub
	closed bool

	done      chan struct{}
	closeOnce sync.Once

	dropped atomic.Uint64
}

// NewMemoryBus returns an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[string][]*memSub),
		done: make(chan struct{}),
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// Publish delivers msg to every subscriber of topic. A topic without
// subscribers swallows the message, and so does a subscription closed
// while the publish waits on it.
func (b *MemoryBus) Publish(ctx context.Context, topic string, msg bgp.Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- msg:
			metrics.IncBusPublished(topic)
		case <-sub.done:
			metrics.IncBusDropReason(topic, "unsubscribed")
		case <-b.done:
			return ErrBusClosed
		case <-ctx.Done():
			reason := dropReason(ctx.Err())
			metrics.IncBusDropReason(topic, reason)
			if n := b.dropped.Add(1); n%dropLogEvery == 1 {
				xglog.L().Warn().
					Str(xglog.FieldEvent, "transport.publish_dropped").
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", n).
					Msg("memory bus failed to publish before context ended")
			}
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

// Subscribe registers a new buffered subscription on topic.
func (b *MemoryBus) Subscribe(topic string) (Subscription, error) {
	sub := &memSub{
		b:     b,
		topic: topic,
		ch:    make(chan bgp.Message, DefaultSubscriberBuffer),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub, nil
}

// Dropped returns how many publishes gave up waiting for a subscriber.
func (b *MemoryBus) Dropped() uint64 { return b.dropped.Load() }

// Close closes every subscription. Blocked publishes return ErrBusClosed,
// later ones fail with it.
func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, lst := range b.subs {
		for _, sub := range lst {
			sub.stop()
			close(sub.ch)
		}
		delete(b.subs, topic)
	}
	return nil
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan bgp.Message

	done     chan struct{}
	stopOnce sync.Once
}

func (s *memSub) C() <-chan bgp.Message { return s.ch }

func (s *memSub) stop() { s.stopOnce.Do(func() { close(s.done) }) }

// Close releases any publish blocked on this subscription, then detaches
// it and closes its channel. It waits for publishes still in flight on
// other subscriptions.
func (s *memSub) Close() error {
	s.stop()

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	lst, ok := s.b.subs[s.topic]
	if !ok {
		// Bus already closed the channel.
		return nil
	}
	out := lst[:0]
	found := false
	for _, c := range lst {
		if c == s {
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		return nil
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	close(s.ch)
	return nil
}
