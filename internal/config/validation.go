// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads and validates the bgpsim daemon configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/rs/zerolog"

	"github.com/ManuGH/bgpsim/internal/session"
	"github.com/ManuGH/bgpsim/internal/telemetry"
)

// Validate checks a fully merged configuration and reports every problem
// at once.
func Validate(cfg Config) error {
	v := &ValidationError{}

	if cfg.Interfaces <= 0 {
		v.add("interfaces", cfg.Interfaces, "must be positive")
	}
	if err := cfg.SessionParameters().Validate(); err != nil {
		v.addParams("", err)
	}
	if cfg.TimeUnit <= 0 {
		v.add("time_unit", cfg.TimeUnit, "must be positive")
	}
	if cfg.WakeInterval <= 0 {
		v.add("wake_interval", cfg.WakeInterval, "must be positive")
	}

	switch cfg.Mode {
	case ModeSimulated:
		if cfg.Duration <= 0 {
			v.add("duration", cfg.Duration, "must be positive in simulated mode")
		}
	case ModeRealtime:
		if cfg.Duration < 0 {
			v.add("duration", cfg.Duration, "must not be negative")
		}
	default:
		v.add("mode", cfg.Mode, "must be simulated or realtime")
	}

	if cfg.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
			v.add("listen_addr", cfg.ListenAddr, "must be host:port")
		}
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		v.add("log_level", cfg.LogLevel, "unknown level")
	}

	seenIface := make(map[int]bool)
	seenID := make(map[int32]bool)
	for i, p := range cfg.Peers {
		field := fmt.Sprintf("peers[%d]", i)
		if p.Interface < 0 || p.Interface >= cfg.Interfaces {
			v.add(field+".interface", p.Interface, fmt.Sprintf("must be in [0,%d)", cfg.Interfaces))
		}
		if p.Identifier == 0 {
			v.add(field+".identifier", p.Identifier, "must be non-zero")
		}
		if seenIface[p.Interface] {
			v.add(field+".interface", p.Interface, "already bound to another peer")
		}
		if p.Identifier != 0 && seenID[p.Identifier] {
			v.add(field+".identifier", p.Identifier, "duplicate identifier")
		}
		seenIface[p.Interface] = true
		seenID[p.Identifier] = true

		if params, ok := cfg.peerParameters(p); ok {
			if err := params.Validate(); err != nil {
				v.addParams(field+".", err)
			}
		}
		if p.KeepaliveEvery < 0 {
			v.add(field+".keepalive_every", p.KeepaliveEvery, "must not be negative")
		}
		if p.SilentAfter < 0 {
			v.add(field+".silent_after", p.SilentAfter, "must not be negative")
		}
	}

	for i, r := range cfg.Routes {
		field := fmt.Sprintf("routes[%d]", i)
		if r.Interface < 0 || r.Interface >= cfg.Interfaces {
			v.add(field+".interface", r.Interface, fmt.Sprintf("must be in [0,%d)", cfg.Interfaces))
		}
		if _, err := netip.ParsePrefix(r.Prefix); err != nil {
			v.add(field+".prefix", r.Prefix, "not a CIDR prefix")
		}
	}

	if t := cfg.Telemetry; t.Enabled {
		if t.Exporter != telemetry.ExporterGRPC && t.Exporter != telemetry.ExporterHTTP {
			v.add("telemetry.exporter", t.Exporter, "must be grpc or http")
		}
		if t.Endpoint == "" {
			v.add("telemetry.endpoint", t.Endpoint, "required when telemetry is enabled")
		}
	}
	if r := cfg.Telemetry.SamplingRate; r < 0 || r > 1 {
		v.add("telemetry.sampling_rate", r, "must be in [0,1]")
	}

	if len(v.Fields) > 0 {
		return v
	}
	return nil
}

func (e *ValidationError) addParams(prefix string, err error) {
	var ce *session.ConfigError
	if errors.As(err, &ce) {
		e.add(prefix+ce.Field, ce.Value, ce.Reason)
		return
	}
	e.add(prefix+"hold_down_time", nil, err.Error())
}

// FieldErrors extracts the individual field failures from err, if any.
func FieldErrors(err error) []FieldError {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Fields
	}
	return nil
}
