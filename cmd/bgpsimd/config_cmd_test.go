// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/bgpsim/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bgpsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigValidate(t *testing.T) {
	var out, errOut bytes.Buffer
	path := writeFile(t, "interfaces: 3\nhold_down_time: 90\n")
	assert.Equal(t, 0, configCLI([]string{"validate", "-f", path}, &out, &errOut))
	assert.Contains(t, out.String(), "is valid")

	out.Reset()
	errOut.Reset()
	path = writeFile(t, "interfaces: 0\nmode: turbo\n")
	assert.Equal(t, 1, configCLI([]string{"validate", "--file", path}, &out, &errOut))
	assert.Contains(t, errOut.String(), "interfaces=0")
	assert.Contains(t, errOut.String(), "mode=turbo")

	assert.Equal(t, 2, configCLI([]string{"validate"}, &out, &errOut))
	assert.Equal(t, 2, configCLI([]string{"frobnicate"}, &out, &errOut))
}

func TestConfigDump_RoundTripsThroughLoader(t *testing.T) {
	var out, errOut bytes.Buffer
	path := writeFile(t, "interfaces: 4\ntime_unit: 250ms\npeers:\n  - interface: 2\n    identifier: 7\n    keepalive_every: 30s\n")
	require.Equal(t, 0, configCLI([]string{"dump", "-f", path}, &out, &errOut), errOut.String())

	var dumped map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &dumped))
	assert.Equal(t, 4, dumped["interfaces"])
	assert.Equal(t, "250ms", dumped["time_unit"])

	again := writeFile(t, out.String())
	cfg, err := config.NewLoader(again, "").Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Interfaces)
	require.Len(t, cfg.Peers, 1)
	assert.Equal(t, int32(7), cfg.Peers[0].Identifier)
}

func TestConfigDump_UnsupportedFormat(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, configCLI([]string{"dump", "--format", "toml"}, &out, &errOut))
}
