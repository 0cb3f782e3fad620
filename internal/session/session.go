// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session implements one BGP peering session: the HoldDown and
// Keepalive timers, the peer binding and the validity flag the supervisor
// polls.
//
// Lifecycle: Stopped -> Start -> Valid. A HoldDown expiry moves Valid to
// Invalid and silences keepalives; only an explicit Start leaves Invalid.
// Stop cancels both timers from any state.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/bgpsim/internal/bgp"
	"github.com/ManuGH/bgpsim/internal/clock"
	xglog "github.com/ManuGH/bgpsim/internal/log"
	"github.com/ManuGH/bgpsim/internal/metrics"
	"github.com/ManuGH/bgpsim/internal/timer"
)

// MessageSink carries emitted keepalives toward the forwarding plane.
// No acknowledgment is expected.
type MessageSink interface {
	Emit(msg bgp.Message, iface int) error
}

// Options wires a session to its collaborators.
type Options struct {
	Clock  clock.Clock     // defaults to clock.Real()
	Sink   MessageSink     // nil drops keepalives after counting them
	Unit   time.Duration   // length of one parameter time unit, defaults to time.Second
	Logger *zerolog.Logger // defaults to the "session" component logger
}

// Session owns two timers and is driven by their firings and by the
// supervisor's reset calls.
type Session struct {
	iface  int
	clock  clock.Clock
	sink   MessageSink
	unit   time.Duration
	logger zerolog.Logger

	// keepaliveMu serialises every rearm of the keepalive deadline, whether
	// from the keepalive firing or from ResetKeepalive. Acquire before mu.
	keepaliveMu sync.Mutex

	mu             sync.Mutex
	state          State
	params         Parameters
	peer           bgp.PeerID
	keepalivesSent uint64
	invalidations  uint64

	holdDown  *timer.Timer
	keepalive *timer.Timer
}

// New creates a stopped session for the given interface. Invalid parameters
// are rejected with an error wrapping ErrInvalidParameters.
func New(iface int, params Parameters, opts Options) (*Session, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("session on interface %d: %w", iface, err)
	}
	if iface < 0 {
		return nil, fmt.Errorf("session: %w", &ConfigError{Field: "interface", Value: iface, Reason: "must not be negative"})
	}
	if opts.Unit < 0 {
		return nil, fmt.Errorf("session on interface %d: %w", iface, &ConfigError{Field: "unit", Value: opts.Unit, Reason: "must be positive"})
	}
	if opts.Unit == 0 {
		opts.Unit = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	var base zerolog.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	} else {
		base = xglog.WithComponent("session")
	}

	s := &Session{
		iface:  iface,
		clock:  opts.Clock,
		sink:   opts.Sink,
		unit:   opts.Unit,
		logger: base.With().Int(xglog.FieldInterface, iface).Logger(),
		state:  Stopped,
		params: params,
		peer:   bgp.NoPeer,
	}
	s.holdDown = timer.New("holddown", s.clock, s.onHoldDown)
	s.keepalive = timer.New("keepalive", s.clock, s.onKeepalive)
	return s, nil
}

// Interface returns the index of the link this session rides.
func (s *Session) Interface() int { return s.iface }

// Start arms HoldDown and Keepalive with the current parameters and marks
// the session valid. Starting a running session re-arms both timers.
func (s *Session) Start() {
	s.keepaliveMu.Lock()
	defer s.keepaliveMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.state
	s.state = Valid
	s.armLocked(s.holdDown, s.params.HoldDownTime)
	s.armLocked(s.keepalive, s.params.KeepaliveTime())
	metrics.SetSessionValid(s.iface, true)

	s.logger.Info().
		Str(xglog.FieldEvent, "session.started").
		Str(xglog.FieldOldState, old.String()).
		Str(xglog.FieldNewState, Valid.String()).
		Stringer(xglog.FieldPeerID, s.peer).
		Int(xglog.FieldHoldDownTime, s.params.HoldDownTime).
		Int(xglog.FieldKeepalive, s.params.KeepaliveTime()).
		Msg("session started")
}

// Stop cancels both timers. Firings already in flight are discarded.
func (s *Session) Stop() {
	s.keepaliveMu.Lock()
	defer s.keepaliveMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Stopped {
		return
	}
	old := s.state
	s.state = Stopped
	s.holdDown.Cancel()
	s.keepalive.Cancel()
	metrics.SetSessionValid(s.iface, false)

	s.logger.Info().
		Str(xglog.FieldEvent, "session.stopped").
		Str(xglog.FieldOldState, old.String()).
		Str(xglog.FieldNewState, Stopped.String()).
		Msg("session stopped")
}

// ResetHoldDown restores the full hold-down budget. It is the peer liveness
// signal and reports false (doing nothing) unless the session is Valid.
func (s *Session) ResetHoldDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Valid {
		return false
	}
	s.armLocked(s.holdDown, s.params.HoldDownTime)
	return true
}

// ResetKeepalive pushes the next keepalive a full interval into the future.
// Concurrent callers are serialised; the last one determines the deadline.
// It reports false (doing nothing) unless the session is Valid.
func (s *Session) ResetKeepalive() bool {
	s.keepaliveMu.Lock()
	defer s.keepaliveMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Valid {
		return false
	}
	s.armLocked(s.keepalive, s.params.KeepaliveTime())
	return true
}

// IsSessionValid reports whether HoldDown has not expired since the last
// Start. Query it before issuing resets for the same cycle.
func (s *Session) IsSessionValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Valid
}

// IsThisSession reports whether id is the bound peer. An unbound session
// matches nothing.
func (s *Session) IsThisSession(id bgp.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer.IsSet() && s.peer == id
}

// SetPeerIdentifier binds the session to a peer.
func (s *Session) SetPeerIdentifier(id bgp.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = id
}

// SetSessionParameters replaces the timer parameters. Timers already armed
// keep their deadlines; the new values apply from the next rearm.
func (s *Session) SetSessionParameters(p Parameters) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("session on interface %d: %w", s.iface, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	s.logger.Debug().
		Str(xglog.FieldEvent, "session.parameters_changed").
		Int(xglog.FieldHoldDownTime, p.HoldDownTime).
		Int(xglog.FieldKeepalive, p.KeepaliveTime()).
		Msg("session parameters changed")
	return nil
}

// Parameters returns the current timer parameters.
func (s *Session) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Peer returns the bound peer identifier, bgp.NoPeer if unbound.
func (s *Session) Peer() bgp.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HoldDownDeadline returns the absolute hold-down deadline, if armed.
func (s *Session) HoldDownDeadline() (time.Time, bool) {
	return s.holdDown.Deadline()
}

// KeepaliveDeadline returns the absolute keepalive deadline, if armed.
func (s *Session) KeepaliveDeadline() (time.Time, bool) {
	return s.keepalive.Deadline()
}

// Snapshot copies the observable state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Interface:      s.iface,
		Peer:           s.peer,
		State:          s.state,
		Valid:          s.state == Valid,
		Parameters:     s.params,
		KeepaliveTime:  s.params.KeepaliveTime(),
		KeepalivesSent: s.keepalivesSent,
		Invalidations:  s.invalidations,
	}
	s.mu.Unlock()

	if dl, ok := s.holdDown.Deadline(); ok {
		snap.HoldDownDeadline = &dl
	}
	if dl, ok := s.keepalive.Deadline(); ok {
		snap.KeepaliveDeadline = &dl
	}
	return snap
}

func (s *Session) onKeepalive(f timer.Firing) {
	s.keepaliveMu.Lock()
	defer s.keepaliveMu.Unlock()

	s.mu.Lock()
	if s.state != Valid || !s.keepalive.Current(f) {
		s.mu.Unlock()
		return
	}
	s.keepalivesSent++
	s.mu.Unlock()

	s.emitKeepalive()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Valid {
		s.armLocked(s.keepalive, s.params.KeepaliveTime())
	}
}

func (s *Session) onHoldDown(f timer.Firing) {
	s.keepaliveMu.Lock()
	defer s.keepaliveMu.Unlock()

	s.mu.Lock()
	if s.state != Valid || !s.holdDown.Current(f) {
		s.mu.Unlock()
		return
	}
	// A keepalive due at this same instant is still sent.
	due := false
	if dl, ok := s.keepalive.Deadline(); ok && !dl.After(f.Deadline) {
		due = true
		s.keepalivesSent++
	}
	s.state = Invalid
	s.invalidations++
	s.keepalive.Cancel()
	peer := s.peer
	s.mu.Unlock()

	if due {
		s.emitKeepalive()
	}
	metrics.IncHoldDownExpired(s.iface)
	metrics.SetSessionValid(s.iface, false)

	s.logger.Warn().
		Str(xglog.FieldEvent, "session.holddown_expired").
		Str(xglog.FieldOldState, Valid.String()).
		Str(xglog.FieldNewState, Invalid.String()).
		Stringer(xglog.FieldPeerID, peer).
		Time(xglog.FieldDeadline, f.Deadline).
		Msg("hold-down timer expired, session invalid")
}

// emitKeepalive hands one keepalive to the sink. Called with keepaliveMu held.
func (s *Session) emitKeepalive() {
	metrics.IncKeepalivesSent(s.iface)
	if s.sink == nil {
		return
	}
	if err := s.sink.Emit(bgp.Keepalive(s.iface), s.iface); err != nil {
		metrics.IncKeepaliveEmitError(s.iface)
		s.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "session.keepalive_emit_failed").
			Msg("failed to emit keepalive")
		return
	}
	s.logger.Debug().
		Str(xglog.FieldEvent, "session.keepalive_sent").
		Msg("keepalive sent")
}

func (s *Session) armLocked(t *timer.Timer, units int) {
	if err := t.Arm(time.Duration(units) * s.unit); err != nil {
		// Parameters are validated before they reach here.
		s.logger.Error().
			Err(err).
			Str(xglog.FieldTimer, t.Name()).
			Msg("failed to arm timer")
	}
}
