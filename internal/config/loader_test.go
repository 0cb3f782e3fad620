// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/bgpsim/internal/bgp"
	"github.com/ManuGH/bgpsim/internal/session"
)

const sampleConfig = `
interfaces: 3
hold_down_time: 90
keepalive_fraction: 3
time_unit: 100ms
wake_interval: 50ms
mode: realtime
listen_addr: 127.0.0.1:9000
log_level: debug
peers:
  - interface: 0
    identifier: 65001
    keepalive_every: 30s
    silent_after: 2m
  - interface: 1
    identifier: 65002
    hold_down_time: 30
routes:
  - interface: 0
    prefix: 10.0.0.0/8
  - interface: 1
    prefix: 2001:db8::/32
telemetry:
  enabled: true
  exporter: http
  endpoint: collector:4318
  sampling_rate: 0.5
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "bgpsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "v-test").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "v-test"
	assert.Equal(t, want, cfg)
	assert.Equal(t, session.DefaultParameters(), cfg.SessionParameters())
	assert.Equal(t, 200*time.Second, cfg.Duration)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Interfaces)
	assert.Equal(t, 90, cfg.HoldDownTime)
	assert.Equal(t, 100*time.Millisecond, cfg.TimeUnit)
	assert.Equal(t, 50*time.Millisecond, cfg.WakeInterval)
	assert.Equal(t, ModeRealtime, cfg.Mode)
	assert.Equal(t, DefaultDuration, cfg.Duration, "absent keys keep defaults")
	require.Len(t, cfg.Peers, 2)
	assert.Equal(t, int32(65001), cfg.Peers[0].Identifier)
	assert.Equal(t, 30*time.Second, cfg.Peers[0].KeepaliveEvery)
	assert.Equal(t, 2*time.Minute, cfg.Peers[0].SilentAfter)
	require.Len(t, cfg.Routes, 2)

	tc := cfg.Tracing()
	assert.True(t, tc.Enabled)
	assert.Equal(t, "bgpsim", tc.ServiceName)
	assert.Equal(t, "http", tc.Exporter)
	assert.Equal(t, "collector:4318", tc.Endpoint)
	assert.InDelta(t, 0.5, tc.SamplingRate, 1e-9)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)
	t.Setenv("BGPSIM_HOLD_DOWN_TIME", "120")
	t.Setenv("BGPSIM_MODE", "simulated")
	t.Setenv("BGPSIM_WAKE_INTERVAL", "2s")
	t.Setenv("BGPSIM_INTERFACES", "not-a-number")
	t.Setenv("BGPSIM_TELEMETRY_ENABLED", "false")
	t.Setenv("BGPSIM_TELEMETRY_SAMPLING_RATE", "0.1")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.HoldDownTime)
	assert.Equal(t, ModeSimulated, cfg.Mode)
	assert.Equal(t, 2*time.Second, cfg.WakeInterval)
	assert.Equal(t, 3, cfg.Interfaces, "unparsable env keeps the file value")
	assert.False(t, cfg.Telemetry.Enabled)
	assert.InDelta(t, 0.1, cfg.Telemetry.SamplingRate, 1e-9)
	assert.Contains(t, l.ConsumedEnvKeys, "BGPSIM_REPORT_PATH")
	assert.Contains(t, l.ConsumedEnvKeys, "BGPSIM_TELEMETRY_ENDPOINT")
}

func TestLoad_UnknownFieldIsFatal(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "interfaces: 2\nholddown: 10\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_RejectsTrailingDocument(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "interfaces: 2\n---\ninterfaces: 3\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_RejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bgpsim.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultInterfaces, cfg.Interfaces)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "hold_down_time: 2\nkeepalive_fraction: 3\n")
	_, err := NewLoader(path, "").Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
	fields := FieldErrors(err)
	require.Len(t, fields, 1)
	assert.Equal(t, "keepalive_fraction", fields[0].Field)
}

func TestConfig_SupervisorAndOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	sc := cfg.Supervisor()
	assert.Equal(t, 3, sc.Interfaces)
	assert.Equal(t, 100*time.Millisecond, sc.Unit)
	require.Len(t, sc.Peers, 2)
	assert.Equal(t, bgp.PeerID(65001), sc.Peers[0].Peer)
	assert.Nil(t, sc.Peers[0].Parameters)
	require.NotNil(t, sc.Peers[1].Parameters)
	assert.Equal(t, session.Parameters{HoldDownTime: 30, KeepaliveFraction: 3}, *sc.Peers[1].Parameters)

	assert.Equal(t, map[int]session.Parameters{1: {HoldDownTime: 30, KeepaliveFraction: 3}}, cfg.Overrides())

	peers := cfg.SimulatedPeers()
	require.Len(t, peers, 2)
	assert.Equal(t, 30*time.Second, peers[0].KeepaliveEvery)
	assert.Zero(t, peers[1].KeepaliveEvery)

	routes := cfg.ParsedRoutes()
	assert.Len(t, routes[0], 1)
	assert.Len(t, routes[1], 1)
}
