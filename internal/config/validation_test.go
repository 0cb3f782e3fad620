// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "no interfaces", mutate: func(c *Config) { c.Interfaces = 0 }, fields: []string{"interfaces"}},
		{name: "keepalive not below hold", mutate: func(c *Config) { c.HoldDownTime = 2; c.KeepaliveFraction = 3 }, fields: []string{"keepalive_fraction"}},
		{name: "zero wake", mutate: func(c *Config) { c.WakeInterval = 0 }, fields: []string{"wake_interval"}},
		{name: "zero unit", mutate: func(c *Config) { c.TimeUnit = 0 }, fields: []string{"time_unit"}},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "turbo" }, fields: []string{"mode"}},
		{name: "simulated needs duration", mutate: func(c *Config) { c.Duration = 0 }, fields: []string{"duration"}},
		{name: "realtime forever", mutate: func(c *Config) { c.Mode = ModeRealtime; c.Duration = 0 }},
		{name: "bad listen addr", mutate: func(c *Config) { c.ListenAddr = "nowhere" }, fields: []string{"listen_addr"}},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, fields: []string{"log_level"}},
		{
			name: "peer problems",
			mutate: func(c *Config) {
				c.Peers = []PeerConfig{
					{Interface: 0, Identifier: 1},
					{Interface: 0, Identifier: 1},
					{Interface: 5, Identifier: 0, KeepaliveEvery: -time.Second},
				}
			},
			fields: []string{
				"peers[1].interface", "peers[1].identifier",
				"peers[2].interface", "peers[2].identifier", "peers[2].keepalive_every",
			},
		},
		{
			name:   "peer override invalid",
			mutate: func(c *Config) { c.Peers = []PeerConfig{{Interface: 0, Identifier: 1, HoldDownTime: 1}} },
			fields: []string{"peers[0].keepalive_fraction"},
		},
		{name: "telemetry off ignores exporter", mutate: func(c *Config) { c.Telemetry.Exporter = "zipkin" }},
		{
			name: "telemetry enabled",
			mutate: func(c *Config) {
				c.Telemetry = TelemetryConfig{Enabled: true, Exporter: "zipkin", SamplingRate: 1.5}
			},
			fields: []string{"telemetry.exporter", "telemetry.endpoint", "telemetry.sampling_rate"},
		},
		{
			name: "route problems",
			mutate: func(c *Config) {
				c.Routes = []RouteConfig{{Interface: 0, Prefix: "10.0.0.0/8"}, {Interface: 9, Prefix: "10.0.0.1"}}
			},
			fields: []string{"routes[1].interface", "routes[1].prefix"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			var got []string
			for _, f := range FieldErrors(err) {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}
