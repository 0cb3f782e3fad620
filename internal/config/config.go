// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"net/netip"
	"time"

	"github.com/ManuGH/bgpsim/internal/bgp"
	"github.com/ManuGH/bgpsim/internal/peersim"
	"github.com/ManuGH/bgpsim/internal/session"
	"github.com/ManuGH/bgpsim/internal/supervisor"
	"github.com/ManuGH/bgpsim/internal/telemetry"
)

// Mode selects how the daemon drives time.
type Mode string

const (
	// ModeSimulated advances a simulated clock for Duration and exits.
	ModeSimulated Mode = "simulated"
	// ModeRealtime runs on the wall clock until signalled.
	ModeRealtime Mode = "realtime"
)

// Defaults.
const (
	DefaultInterfaces        = 2
	DefaultHoldDownTime      = 180
	DefaultKeepaliveFraction = 3
	DefaultTimeUnit          = time.Second
	DefaultWakeInterval      = time.Second
	DefaultDuration          = 200 * time.Second
	DefaultListenAddr        = ":8089"
	DefaultLogLevel          = "info"
	DefaultTraceExporter     = telemetry.ExporterGRPC
	DefaultTraceEndpoint     = "localhost:4317"
	DefaultTraceSampling     = 1.0
)

// Config is the daemon configuration. Field precedence is
// ENV > file > defaults.
type Config struct {
	Interfaces        int             `yaml:"interfaces"`
	HoldDownTime      int             `yaml:"hold_down_time"`
	KeepaliveFraction int             `yaml:"keepalive_fraction"`
	TimeUnit          time.Duration   `yaml:"time_unit"`
	WakeInterval      time.Duration   `yaml:"wake_interval"`
	Mode              Mode            `yaml:"mode"`
	Duration          time.Duration   `yaml:"duration"`
	ListenAddr        string          `yaml:"listen_addr"`
	LogLevel          string          `yaml:"log_level"`
	ReportPath        string          `yaml:"report_path"`
	Peers             []PeerConfig    `yaml:"peers"`
	Routes            []RouteConfig   `yaml:"routes"`
	Telemetry         TelemetryConfig `yaml:"telemetry"`

	Version string `yaml:"-"`
}

// PeerConfig binds a remote speaker to an interface. Zero timer fields
// inherit the global parameters.
type PeerConfig struct {
	Interface         int           `yaml:"interface"`
	Identifier        int32         `yaml:"identifier"`
	HoldDownTime      int           `yaml:"hold_down_time,omitempty"`
	KeepaliveFraction int           `yaml:"keepalive_fraction,omitempty"`
	KeepaliveEvery    time.Duration `yaml:"keepalive_every,omitempty"`
	SilentAfter       time.Duration `yaml:"silent_after,omitempty"`
}

// TelemetryConfig controls OpenTelemetry tracing. Disabled by default.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// RouteConfig seeds one route behind an interface.
type RouteConfig struct {
	Interface int    `yaml:"interface"`
	Prefix    string `yaml:"prefix"`
}

// Defaults returns a configuration with every default applied.
func Defaults() Config {
	return Config{
		Interfaces:        DefaultInterfaces,
		HoldDownTime:      DefaultHoldDownTime,
		KeepaliveFraction: DefaultKeepaliveFraction,
		TimeUnit:          DefaultTimeUnit,
		WakeInterval:      DefaultWakeInterval,
		Mode:              ModeSimulated,
		Duration:          DefaultDuration,
		ListenAddr:        DefaultListenAddr,
		LogLevel:          DefaultLogLevel,
		Telemetry: TelemetryConfig{
			Exporter:     DefaultTraceExporter,
			Endpoint:     DefaultTraceEndpoint,
			SamplingRate: DefaultTraceSampling,
		},
	}
}

// Tracing builds the tracer provider configuration.
func (c Config) Tracing() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    "bgpsim",
		ServiceVersion: c.Version,
		Exporter:       c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}

// SessionParameters returns the global timer parameters.
func (c Config) SessionParameters() session.Parameters {
	return session.Parameters{HoldDownTime: c.HoldDownTime, KeepaliveFraction: c.KeepaliveFraction}
}

// peerParameters resolves a peer's effective parameters, reporting whether
// the peer overrides the globals at all.
func (c Config) peerParameters(p PeerConfig) (session.Parameters, bool) {
	if p.HoldDownTime == 0 && p.KeepaliveFraction == 0 {
		return session.Parameters{}, false
	}
	params := c.SessionParameters()
	if p.HoldDownTime != 0 {
		params.HoldDownTime = p.HoldDownTime
	}
	if p.KeepaliveFraction != 0 {
		params.KeepaliveFraction = p.KeepaliveFraction
	}
	return params, true
}

// Supervisor builds the supervisor configuration.
func (c Config) Supervisor() supervisor.Config {
	out := supervisor.Config{
		Interfaces: c.Interfaces,
		Parameters: c.SessionParameters(),
		Unit:       c.TimeUnit,
		Peers:      make([]supervisor.PeerBinding, 0, len(c.Peers)),
	}
	for _, p := range c.Peers {
		b := supervisor.PeerBinding{Interface: p.Interface, Peer: bgp.PeerID(p.Identifier)}
		if params, ok := c.peerParameters(p); ok {
			b.Parameters = &params
		}
		out.Peers = append(out.Peers, b)
	}
	return out
}

// Overrides returns the per-interface parameter overrides, keyed by
// interface, for Supervisor.ApplyParameters.
func (c Config) Overrides() map[int]session.Parameters {
	out := make(map[int]session.Parameters)
	for _, p := range c.Peers {
		if params, ok := c.peerParameters(p); ok {
			out[p.Interface] = params
		}
	}
	return out
}

// SimulatedPeers converts the peer list for the peer simulator.
func (c Config) SimulatedPeers() []peersim.Peer {
	out := make([]peersim.Peer, 0, len(c.Peers))
	for _, p := range c.Peers {
		out = append(out, peersim.Peer{
			ID:             bgp.PeerID(p.Identifier),
			Interface:      p.Interface,
			KeepaliveEvery: p.KeepaliveEvery,
			SilentAfter:    p.SilentAfter,
		})
	}
	return out
}

// ParsedRoutes returns the seed routes. Validate has already rejected
// malformed prefixes.
func (c Config) ParsedRoutes() map[int][]netip.Prefix {
	out := make(map[int][]netip.Prefix)
	for _, r := range c.Routes {
		p, err := netip.ParsePrefix(r.Prefix)
		if err != nil {
			continue
		}
		out[r.Interface] = append(out[r.Interface], p)
	}
	return out
}
