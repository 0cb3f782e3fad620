// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the supervisor, its collaborators and the ops HTTP
// surface into one runnable application.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/bgpsim/internal/bgp"
	"github.com/ManuGH/bgpsim/internal/clock"
	"github.com/ManuGH/bgpsim/internal/config"
	"github.com/ManuGH/bgpsim/internal/health"
	xglog "github.com/ManuGH/bgpsim/internal/log"
	"github.com/ManuGH/bgpsim/internal/peersim"
	"github.com/ManuGH/bgpsim/internal/rib"
	"github.com/ManuGH/bgpsim/internal/session"
	"github.com/ManuGH/bgpsim/internal/supervisor"
	"github.com/ManuGH/bgpsim/internal/telemetry"
	"github.com/ManuGH/bgpsim/internal/transport"
)

const (
	shutdownTimeout = 5 * time.Second
	inboundBuffer   = 256
)

// App owns one run: the clock, the session supervisor, the in-memory
// transport and routing table, the simulated peers and the ops server.
type App struct {
	cfg    config.Config
	holder *config.Holder
	logger zerolog.Logger

	clock   clock.Clock
	sim     *clock.Simulated // nil in realtime mode
	bus     *transport.MemoryBus
	routes  *rib.Table
	sup     *supervisor.Supervisor
	peers   *peersim.Simulator
	health  *health.Manager
	inbound chan bgp.Inbound

	reloadSignal os.Signal
	listener     net.Listener

	mu        sync.Mutex
	running   bool
	events    []supervisor.Event
	delivered map[string]int
}

// NewApp builds every component from cfg. holder may be nil when hot
// reload is not wanted.
func NewApp(cfg config.Config, holder *config.Holder, logger zerolog.Logger) (*App, error) {
	a := &App{
		cfg:          cfg,
		holder:       holder,
		logger:       logger,
		bus:          transport.NewMemoryBus(),
		routes:       rib.NewTable(),
		health:       health.NewManager(cfg.Version),
		inbound:      make(chan bgp.Inbound, inboundBuffer),
		reloadSignal: syscall.SIGHUP,
		delivered:    make(map[string]int),
	}

	switch cfg.Mode {
	case config.ModeSimulated:
		a.sim = clock.NewSimulated(time.Now().UTC().Truncate(time.Second))
		a.clock = a.sim
	default:
		a.clock = clock.Real()
	}

	for iface, prefixes := range cfg.ParsedRoutes() {
		for _, p := range prefixes {
			if err := a.routes.Add(iface, p); err != nil {
				return nil, fmt.Errorf("seed routes: %w", err)
			}
		}
	}

	supCfg := cfg.Supervisor()
	supCfg.EventBuffer = max(64, 2*cfg.Interfaces)
	supLogger := logger.With().Str(xglog.FieldComponent, "supervisor").Logger()
	sup, err := supervisor.New(supCfg, supervisor.Deps{
		Clock:  a.clock,
		Sink:   transport.NewSink(a.bus, 0),
		Routes: a.routes,
		Logger: &supLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("create supervisor: %w", err)
	}
	a.sup = sup
	a.peers = peersim.New(a.clock, a.deliver)

	a.health.RegisterChecker(health.NewSessionsChecker(sup.Snapshots))
	a.health.RegisterChecker(health.NewLoopChecker(5*cfg.WakeInterval, sup.LastCycle, a.clock.Now))
	return a, nil
}

// Supervisor exposes the session collection.
func (a *App) Supervisor() *supervisor.Supervisor { return a.sup }

// Handler returns the ops HTTP surface.
func (a *App) Handler() http.Handler {
	return NewRouter(RouterDeps{
		Health:   a.health,
		Sessions: a.sup.Snapshots,
		Events:   a.Events,
	})
}

// Events returns every withdrawal notification seen so far.
func (a *App) Events() []supervisor.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append(make([]supervisor.Event, 0, len(a.events)), a.events...)
}

// deliver routes a simulated peer's message to the supervisor. In
// simulated mode the supervisor wakes right away, at the arrival instant;
// in realtime mode the message is queued for the supervisor loop.
func (a *App) deliver(in bgp.Inbound) {
	if a.sim != nil {
		a.sup.Cycle(context.Background(), []bgp.Inbound{in})
		return
	}
	select {
	case a.inbound <- in:
	default:
		a.logger.Warn().
			Str(xglog.FieldEvent, "daemon.inbound_dropped").
			Stringer(xglog.FieldPeerID, in.Peer).
			Msg("inbound queue full, dropping notification")
	}
}

// Run blocks until the run finishes: the simulated duration has elapsed,
// the realtime duration (if any) has elapsed, or ctx is cancelled. The
// supervisor is closed and the report written before Run returns.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	startedAt := time.Now()

	tp, err := telemetry.NewProvider(ctx, a.cfg.Tracing())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "daemon.tracing_shutdown_failed").Msg("failed to flush traces")
		}
	}()

	if a.cfg.ListenAddr != "" {
		ln, err := net.Listen("tcp", a.cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrServerStartFailed, err)
		}
		a.mu.Lock()
		a.listener = ln
		a.mu.Unlock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.sim == nil && a.cfg.Duration > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, a.cfg.Duration)
		defer cancel()
	}

	consumers := a.startConsumers()
	collectorDone := a.collectEvents()

	g, gctx := errgroup.WithContext(runCtx)
	a.watchConfig(gctx, g)

	if a.listener != nil {
		a.serve(gctx, g)
	}

	if err := a.peers.Start(a.cfg.SimulatedPeers()); err != nil {
		cancel()
		_ = g.Wait()
		a.teardown(consumers, collectorDone)
		return fmt.Errorf("start simulated peers: %w", err)
	}

	g.Go(func() error {
		defer cancel()
		if a.sim != nil {
			return a.runSimulated(gctx)
		}
		ticker := time.NewTicker(a.cfg.WakeInterval)
		defer ticker.Stop()
		return a.sup.Run(gctx, ticker.C, a.inbound)
	})

	err = g.Wait()
	final := a.sup.Snapshots()
	a.teardown(consumers, collectorDone)

	if a.cfg.ReportPath != "" {
		rep := a.report(startedAt, final)
		if werr := WriteReport(a.logger.WithContext(context.Background()), a.cfg.ReportPath, rep); werr != nil {
			err = errors.Join(err, werr)
		} else {
			a.logger.Info().
				Str(xglog.FieldEvent, "daemon.report_written").
				Str("path", a.cfg.ReportPath).
				Msg("run report written")
		}
	}
	return err
}

// runSimulated advances the simulated clock one wake interval at a time
// and runs a supervisor cycle after every step.
func (a *App) runSimulated(ctx context.Context) error {
	end := a.sim.Now().Add(a.cfg.Duration)
	a.logger.Info().
		Str(xglog.FieldEvent, "daemon.simulation_started").
		Dur("duration", a.cfg.Duration).
		Dur("wake_interval", a.cfg.WakeInterval).
		Msg("simulation started")

	for a.sim.Now().Before(end) {
		if ctx.Err() != nil {
			return nil
		}
		step := min(a.cfg.WakeInterval, end.Sub(a.sim.Now()))
		a.sim.Advance(step)
		a.sup.Cycle(ctx, nil)
	}

	a.logger.Info().
		Str(xglog.FieldEvent, "daemon.simulation_finished").
		Time("sim_time", a.sim.Now()).
		Msg("simulation finished")
	return nil
}

// watchConfig applies reloaded timer parameters to the running sessions.
func (a *App) watchConfig(ctx context.Context, g *errgroup.Group) {
	if a.holder == nil {
		return
	}
	if err := a.holder.StartWatcher(ctx); err != nil {
		a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
	}

	applyCh := make(chan config.Config, 1)
	a.holder.RegisterListener(applyCh)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg := <-applyCh:
				a.applyConfig(cfg)
			}
		}
	})

	if a.reloadSignal == nil {
		return
	}
	g.Go(func() error {
		hupChan := make(chan os.Signal, 1)
		signal.Notify(hupChan, a.reloadSignal)
		defer signal.Stop(hupChan)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hupChan:
				a.logger.Info().
					Str(xglog.FieldEvent, "config.reload_signal").
					Str("signal", a.reloadSignal.String()).
					Msg("received reload signal, reloading config")
				if err := a.holder.Reload(ctx); err != nil {
					a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload failed")
				}
			}
		}
	})
}

func (a *App) applyConfig(cfg config.Config) {
	if err := a.sup.ApplyParameters(cfg.SessionParameters(), cfg.Overrides()); err != nil {
		a.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "daemon.apply_parameters_failed").
			Msg("reloaded parameters rejected")
	}
}

func (a *App) serve(ctx context.Context, g *errgroup.Group) {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return a.logger.WithContext(context.Background()) },
	}
	ln := a.listener

	g.Go(func() error {
		a.logger.Info().
			Str(xglog.FieldEvent, "daemon.http_started").
			Str("addr", ln.Addr().String()).
			Msg("ops server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: %w", ErrServerStartFailed, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.http_shutdown_failed").Msg("ops server shutdown failed")
		}
		return nil
	})
}

// Addr returns the bound ops address once Run has started listening.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// startConsumers drains every interface topic, counting what the sessions
// put on the wire. They stop when the bus closes.
func (a *App) startConsumers() *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < a.sup.Len(); i++ {
		sub, err := a.bus.Subscribe(transport.Topic(i))
		if err != nil {
			a.logger.Warn().Err(err).Int(xglog.FieldInterface, i).Msg("cannot subscribe to interface topic")
			continue
		}
		topic := transport.Topic(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range sub.C() {
				a.mu.Lock()
				a.delivered[topic]++
				a.mu.Unlock()
			}
		}()
	}
	return &wg
}

func (a *App) collectEvents() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range a.sup.Events() {
			a.mu.Lock()
			a.events = append(a.events, ev)
			a.mu.Unlock()
		}
	}()
	return done
}

func (a *App) teardown(consumers *sync.WaitGroup, collectorDone <-chan struct{}) {
	a.peers.Stop()
	_ = a.sup.Close()
	<-collectorDone
	_ = a.bus.Close()
	consumers.Wait()
}

func (a *App) report(startedAt time.Time, sessions []session.Snapshot) Report {
	a.mu.Lock()
	delivered := make(map[string]int, len(a.delivered))
	for k, v := range a.delivered {
		delivered[k] = v
	}
	a.mu.Unlock()
	events := a.Events()

	return Report{
		Version:         a.cfg.Version,
		Mode:            string(a.cfg.Mode),
		StartedAt:       startedAt,
		FinishedAt:      time.Now(),
		Sessions:        sessions,
		Events:          events,
		MessagesOut:     delivered,
		RoutesRemaining: a.routes.Len(),
	}
}
