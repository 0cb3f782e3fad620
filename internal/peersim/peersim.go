// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package peersim plays the remote side of configured peerings: each peer
// sends keepalives at a fixed cadence on the shared clock and may go quiet
// after a while, which is what drives a session's hold-down to expiry.
package peersim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/bgpsim/internal/bgp"
	"github.com/ManuGH/bgpsim/internal/clock"
	xglog "github.com/ManuGH/bgpsim/internal/log"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("peer simulator already started")

// Peer describes one remote speaker.
type Peer struct {
	ID        bgp.PeerID
	Interface int
	// KeepaliveEvery is the sending cadence. Zero means the peer never sends.
	KeepaliveEvery time.Duration
	// SilentAfter stops the peer once this much time has passed since Start.
	// Zero means it never goes quiet.
	SilentAfter time.Duration
}

// Validate checks a single peer definition.
func (p Peer) Validate() error {
	switch {
	case !p.ID.IsSet():
		return fmt.Errorf("peer on interface %d: identifier must be set", p.Interface)
	case p.Interface < 0:
		return fmt.Errorf("peer %s: interface must not be negative", p.ID)
	case p.KeepaliveEvery < 0:
		return fmt.Errorf("peer %s: keepalive cadence must not be negative", p.ID)
	case p.SilentAfter < 0:
		return fmt.Errorf("peer %s: silent_after must not be negative", p.ID)
	}
	return nil
}

// Simulator schedules inbound notifications for a set of peers.
type Simulator struct {
	clock   clock.Clock
	deliver func(bgp.Inbound)
	logger  zerolog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	start   time.Time
	handles map[bgp.PeerID]clock.Handle
	sent    map[bgp.PeerID]int
}

// New returns a simulator delivering notifications through deliver. The
// callback runs on the clock's goroutine and must not block.
func New(c clock.Clock, deliver func(bgp.Inbound)) *Simulator {
	if c == nil {
		c = clock.Real()
	}
	return &Simulator{
		clock:   c,
		deliver: deliver,
		logger:  xglog.WithComponent("peersim"),
		handles: make(map[bgp.PeerID]clock.Handle),
		sent:    make(map[bgp.PeerID]int),
	}
}

// Start schedules the first keepalive of every sending peer.
func (s *Simulator) Start(peers []Peer) error {
	for _, p := range peers {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.start = s.clock.Now()

	for _, p := range peers {
		if p.KeepaliveEvery == 0 {
			continue
		}
		s.scheduleLocked(p)
		s.logger.Debug().
			Str(xglog.FieldEvent, "peersim.peer_started").
			Stringer(xglog.FieldPeerID, p.ID).
			Int(xglog.FieldInterface, p.Interface).
			Dur("every", p.KeepaliveEvery).
			Dur("silent_after", p.SilentAfter).
			Msg("simulated peer started")
	}
	return nil
}

func (s *Simulator) scheduleLocked(p Peer) {
	s.handles[p.ID] = s.clock.AfterFunc(p.KeepaliveEvery, func() { s.fire(p) })
}

func (s *Simulator) fire(p Peer) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if p.SilentAfter > 0 && s.clock.Now().Sub(s.start) > p.SilentAfter {
		delete(s.handles, p.ID)
		s.mu.Unlock()
		s.logger.Info().
			Str(xglog.FieldEvent, "peersim.peer_silent").
			Stringer(xglog.FieldPeerID, p.ID).
			Msg("simulated peer went quiet")
		return
	}
	s.sent[p.ID]++
	s.scheduleLocked(p)
	s.mu.Unlock()

	if s.deliver != nil {
		s.deliver(bgp.Inbound{Peer: p.ID, Interface: p.Interface, Type: bgp.MessageKeepalive})
	}
}

// Sent returns how many keepalives peer id has delivered.
func (s *Simulator) Sent(id bgp.PeerID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[id]
}

// Stop cancels every scheduled keepalive. It is idempotent.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for id, h := range s.handles {
		h.Stop()
		delete(s.handles, id)
	}
}
