// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package supervisor owns the fixed set of BGP sessions of one router and
// polls their validity on every wake cycle, withdrawing the routes behind
// any interface whose session is no longer valid.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/bgpsim/internal/bgp"
	"github.com/ManuGH/bgpsim/internal/clock"
	xglog "github.com/ManuGH/bgpsim/internal/log"
	"github.com/ManuGH/bgpsim/internal/metrics"
	"github.com/ManuGH/bgpsim/internal/session"
	"github.com/ManuGH/bgpsim/internal/telemetry"
)

var (
	// ErrUnknownInterface is returned for an interface index outside the collection.
	ErrUnknownInterface = errors.New("unknown interface")

	// ErrUnknownPeer is returned when no session is bound to an inbound peer identifier.
	ErrUnknownPeer = errors.New("no session for peer")

	// ErrSupervisorClosed is returned once Close has run.
	ErrSupervisorClosed = errors.New("supervisor closed")

	// ErrNoSink is returned by Send when no message sink is wired.
	ErrNoSink = errors.New("no message sink configured")
)

// RouteTable is the routing-table collaborator.
type RouteTable interface {
	WithdrawRoutes(ctx context.Context, iface int) (int, error)
}

// PeerBinding assigns a peer, and optionally its own parameters, to an interface.
type PeerBinding struct {
	Interface  int
	Peer       bgp.PeerID
	Parameters *session.Parameters
}

// Config sizes and parametrises the session collection.
type Config struct {
	Interfaces  int
	Parameters  session.Parameters
	Peers       []PeerBinding
	Unit        time.Duration // length of one parameter time unit
	EventBuffer int           // capacity of the Events channel, default 64
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Clock  clock.Clock
	Sink   session.MessageSink
	Routes RouteTable
	Logger *zerolog.Logger
	Tracer trace.Tracer // defaults to the global "bgpsim/supervisor" tracer
}

type entry struct {
	session     *session.Session
	withdrawn   bool // routes already withdrawn for the current invalid spell
	withdrawing bool // a cycle is talking to the route table for this entry
}

// Supervisor is the control-plane loop over all sessions.
type Supervisor struct {
	clock  clock.Clock
	sink   session.MessageSink
	routes RouteTable
	logger zerolog.Logger
	tracer trace.Tracer

	unknownPeerLog *rate.Limiter

	mu        sync.Mutex
	entries   []entry // one per interface, never resized
	events    chan Event
	closed    bool
	lastCycle time.Time
}

// New creates one session per interface, binds configured peers and starts
// every session.
func New(cfg Config, deps Deps) (*Supervisor, error) {
	if cfg.Interfaces <= 0 {
		return nil, fmt.Errorf("supervisor: interfaces must be positive, got %d", cfg.Interfaces)
	}
	if err := cfg.Parameters.Validate(); err != nil {
		return nil, fmt.Errorf("supervisor default parameters: %w", err)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.Tracer("bgpsim/supervisor")
	}

	var base zerolog.Logger
	if deps.Logger != nil {
		base = *deps.Logger
	} else {
		base = xglog.WithComponent("supervisor")
	}
	sessionLogger := base.With().Str(xglog.FieldComponent, "session").Logger()

	s := &Supervisor{
		clock:          deps.Clock,
		sink:           deps.Sink,
		routes:         deps.Routes,
		logger:         base,
		tracer:         deps.Tracer,
		unknownPeerLog: rate.NewLimiter(rate.Every(10*time.Second), 3),
		entries:        make([]entry, cfg.Interfaces),
		events:         make(chan Event, cfg.EventBuffer),
	}

	for i := range s.entries {
		sess, err := session.New(i, cfg.Parameters, session.Options{
			Clock:  deps.Clock,
			Sink:   deps.Sink,
			Unit:   cfg.Unit,
			Logger: &sessionLogger,
		})
		if err != nil {
			return nil, err
		}
		s.entries[i].session = sess
	}

	for _, b := range cfg.Peers {
		if b.Interface < 0 || b.Interface >= len(s.entries) {
			return nil, fmt.Errorf("peer %s: interface %d: %w", b.Peer, b.Interface, ErrUnknownInterface)
		}
		sess := s.entries[b.Interface].session
		sess.SetPeerIdentifier(b.Peer)
		if b.Parameters != nil {
			if err := sess.SetSessionParameters(*b.Parameters); err != nil {
				return nil, fmt.Errorf("peer %s: %w", b.Peer, err)
			}
		}
	}

	for _, e := range s.entries {
		e.session.Start()
	}

	s.logger.Info().
		Str(xglog.FieldEvent, "supervisor.started").
		Int("sessions", len(s.entries)).
		Int("peers", len(cfg.Peers)).
		Msg("supervisor started all sessions")
	return s, nil
}

// Len returns the fixed number of sessions.
func (s *Supervisor) Len() int { return len(s.entries) }

// Session returns the session riding interface iface.
func (s *Supervisor) Session(iface int) (*session.Session, error) {
	if iface < 0 || iface >= len(s.entries) {
		return nil, fmt.Errorf("interface %d: %w", iface, ErrUnknownInterface)
	}
	return s.entries[iface].session, nil
}

// Events delivers withdrawal notifications. It is closed by Close. Events
// that find the buffer full are dropped (they are also logged).
func (s *Supervisor) Events() <-chan Event { return s.events }

// CheckOnce runs one wake cycle: every session's validity is queried and
// routes behind invalid sessions are withdrawn, once per invalid spell.
// The route table is called without holding the supervisor lock. It
// returns the events raised in this cycle.
func (s *Supervisor) CheckOnce(ctx context.Context) []Event {
	ctx, span := s.tracer.Start(ctx, "supervisor.cycle")
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	metrics.IncSupervisorCycles()
	s.lastCycle = s.clock.Now()

	var pending []int
	for i := range s.entries {
		e := &s.entries[i]
		if e.session.IsSessionValid() {
			e.withdrawn = false
			continue
		}
		if e.withdrawn || e.withdrawing {
			continue
		}
		e.withdrawing = true
		pending = append(pending, i)
	}
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int(telemetry.CycleSessionsKey, len(s.entries)),
		attribute.Int(telemetry.CycleInvalidKey, len(pending)),
	)

	var raised []Event
	for _, iface := range pending {
		ev, ok := s.withdraw(ctx, iface)

		s.mu.Lock()
		e := &s.entries[iface]
		e.withdrawing = false
		if ok {
			e.withdrawn = true
			if !s.closed {
				s.publishLocked(ev)
			}
		}
		s.mu.Unlock()

		if ok {
			raised = append(raised, ev)
			s.announce(ctx, ev)
		}
	}
	return raised
}

func (s *Supervisor) withdraw(ctx context.Context, iface int) (Event, bool) {
	sess := s.entries[iface].session
	kind := EventHoldDownExpired
	if sess.State() == session.Stopped {
		kind = EventSessionStopped
	}
	ev := Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Interface: iface,
		Peer:      sess.Peer(),
		At:        s.clock.Now(),
	}

	ctx, span := s.tracer.Start(ctx, "supervisor.withdraw",
		trace.WithAttributes(telemetry.SessionAttributes(iface, int32(ev.Peer))...),
		trace.WithAttributes(attribute.String(telemetry.EventKindKey, string(kind))),
	)
	defer span.End()
	logger := xglog.WithContext(xglog.ContextWithCorrelationID(ctx, ev.ID), s.logger)

	if s.routes != nil {
		n, err := s.routes.WithdrawRoutes(ctx, iface)
		if err != nil {
			// Left unmarked: the next poll sees the same invalid session.
			span.RecordError(err)
			span.SetStatus(codes.Error, "withdraw failed")
			logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "supervisor.withdraw_failed").
				Int(xglog.FieldInterface, iface).
				Msg("failed to withdraw routes")
			return Event{}, false
		}
		ev.Withdrawn = n
		metrics.AddRoutesWithdrawn(iface, n)
	}
	span.SetAttributes(attribute.Int(telemetry.RoutesWithdrawnKey, ev.Withdrawn))

	logger.Warn().
		Str(xglog.FieldEvent, "supervisor.routes_withdrawn").
		Str(xglog.FieldEventID, ev.ID).
		Str("kind", string(ev.Kind)).
		Int(xglog.FieldInterface, iface).
		Stringer(xglog.FieldPeerID, ev.Peer).
		Int("routes", ev.Withdrawn).
		Msg("session not valid, routes withdrawn")
	return ev, true
}

// announce tells every other valid peer about the withdrawn routes with an
// UPDATE, which also resets that session's keepalive.
func (s *Supervisor) announce(ctx context.Context, ev Event) {
	if s.sink == nil || ev.Withdrawn == 0 {
		return
	}
	for i, e := range s.entries {
		if i == ev.Interface || !e.session.IsSessionValid() {
			continue
		}
		msg := bgp.Message{Type: bgp.MessageUpdate}
		if err := s.Send(ctx, i, msg); err != nil {
			s.logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "supervisor.update_failed").
				Str(xglog.FieldEventID, ev.ID).
				Int(xglog.FieldInterface, i).
				Msg("failed to announce withdrawal")
		}
	}
}

func (s *Supervisor) publishLocked(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().
			Str(xglog.FieldEvent, "supervisor.event_dropped").
			Str(xglog.FieldEventID, ev.ID).
			Msg("event buffer full, dropping notification")
	}
}

// HandleInbound processes "a message from peer X arrived". The matching
// session's hold-down is reset if, and only if, it is still valid.
func (s *Supervisor) HandleInbound(_ context.Context, in bgp.Inbound) error {
	if s.isClosed() {
		return ErrSupervisorClosed
	}
	sess := s.lookup(in.Peer)
	if sess == nil {
		metrics.IncInbound("unknown_peer")
		if s.unknownPeerLog.Allow() {
			s.logger.Warn().
				Str(xglog.FieldEvent, "supervisor.unknown_peer").
				Stringer(xglog.FieldPeerID, in.Peer).
				Int(xglog.FieldInterface, in.Interface).
				Msg("dropping message from unknown peer")
		}
		return fmt.Errorf("peer %s: %w", in.Peer, ErrUnknownPeer)
	}

	if !sess.IsSessionValid() {
		metrics.IncInbound("invalid")
		return nil
	}
	if sess.ResetHoldDown() {
		metrics.IncInbound("reset")
	}
	return nil
}

// Send hands a message for a peer to the sink. Any message other than a
// keepalive also resets the session's keepalive timer.
func (s *Supervisor) Send(_ context.Context, iface int, msg bgp.Message) error {
	if s.isClosed() {
		return ErrSupervisorClosed
	}
	sess, err := s.Session(iface)
	if err != nil {
		return err
	}
	if s.sink == nil {
		return ErrNoSink
	}
	msg.Interface = iface
	if err := s.sink.Emit(msg, iface); err != nil {
		return fmt.Errorf("send %s on interface %d: %w", msg.Type, iface, err)
	}
	if msg.Type != bgp.MessageKeepalive {
		sess.ResetKeepalive()
	}
	return nil
}

// Restart stops and starts the session on iface. It is the only way out of
// the Invalid state.
func (s *Supervisor) Restart(iface int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSupervisorClosed
	}
	if iface < 0 || iface >= len(s.entries) {
		return fmt.Errorf("interface %d: %w", iface, ErrUnknownInterface)
	}
	e := &s.entries[iface]
	e.session.Stop()
	e.session.Start()
	e.withdrawn = false
	return nil
}

// ApplyParameters replaces the default parameters on every session without
// a per-peer override. Armed timers keep their deadlines.
func (s *Supervisor) ApplyParameters(p session.Parameters, overrides map[int]session.Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for iface, op := range overrides {
		if iface < 0 || iface >= len(s.entries) {
			return fmt.Errorf("interface %d: %w", iface, ErrUnknownInterface)
		}
		if err := op.Validate(); err != nil {
			return err
		}
	}
	for i, e := range s.entries {
		params := p
		if op, ok := overrides[i]; ok {
			params = op
		}
		if err := e.session.SetSessionParameters(params); err != nil {
			return err
		}
	}
	s.logger.Info().
		Str(xglog.FieldEvent, "supervisor.parameters_applied").
		Int(xglog.FieldHoldDownTime, p.HoldDownTime).
		Int(xglog.FieldKeepalive, p.KeepaliveTime()).
		Int("overrides", len(overrides)).
		Msg("session parameters applied")
	return nil
}

// LastCycle returns the clock time of the most recent CheckOnce, zero
// before the first one.
func (s *Supervisor) LastCycle() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCycle
}

// Snapshots copies the state of every session, in interface order.
func (s *Supervisor) Snapshots() []session.Snapshot {
	out := make([]session.Snapshot, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.session.Snapshot())
	}
	return out
}

// Run drives wake cycles until ctx is done. A cycle starts on every tick
// from wake and on every inbound notification; validity is always checked
// before the cycle's hold-down resets are applied.
func (s *Supervisor) Run(ctx context.Context, wake <-chan time.Time, inbound <-chan bgp.Inbound) error {
	if ctx == nil {
		return fmt.Errorf("run context is nil")
	}
	s.logger.Info().Str(xglog.FieldEvent, "supervisor.loop_started").Msg("supervisor loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str(xglog.FieldEvent, "supervisor.loop_stopped").Msg("supervisor loop stopped")
			return nil
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			s.Cycle(ctx, drain(inbound, nil))
		case in, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			s.Cycle(ctx, drain(inbound, []bgp.Inbound{in}))
		}
	}
}

// Cycle runs one wake cycle for a batch of inbound notifications: validity
// is checked first, then the batch's hold-down resets are applied.
func (s *Supervisor) Cycle(ctx context.Context, batch []bgp.Inbound) []Event {
	raised := s.CheckOnce(ctx)
	for _, in := range batch {
		if err := s.HandleInbound(ctx, in); err != nil && !errors.Is(err, ErrUnknownPeer) {
			s.logger.Debug().Err(err).Msg("inbound handling failed")
		}
	}
	return raised
}

// drain collects whatever is already queued on ch without blocking.
func drain(ch <-chan bgp.Inbound, batch []bgp.Inbound) []bgp.Inbound {
	if ch == nil {
		return batch
	}
	for {
		select {
		case in, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, in)
		default:
			return batch
		}
	}
}

// Close stops every session and closes the Events channel. It is idempotent.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, e := range s.entries {
		e.session.Stop()
	}
	close(s.events)
	s.logger.Info().Str(xglog.FieldEvent, "supervisor.closed").Msg("supervisor stopped all sessions")
	return nil
}

func (s *Supervisor) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Supervisor) lookup(id bgp.PeerID) *session.Session {
	for _, e := range s.entries {
		if e.session.IsThisSession(id) {
			return e.session
		}
	}
	return nil
}
