// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadHolder(t *testing.T, body string) (*Holder, string) {
	t.Helper()
	path := writeConfig(t, t.TempDir(), body)
	loader := NewLoader(path, "")
	cfg, err := loader.Load()
	require.NoError(t, err)
	return NewHolder(cfg, loader), path
}

func TestHolder_ReloadNotifiesListeners(t *testing.T) {
	h, path := loadHolder(t, "hold_down_time: 180\n")
	ch := make(chan Config, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("hold_down_time: 90\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, 90, h.Get().HoldDownTime)
	select {
	case got := <-ch:
		assert.Equal(t, 90, got.HoldDownTime)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolder_ReloadKeepsOldConfigOnFailure(t *testing.T) {
	h, path := loadHolder(t, "hold_down_time: 180\n")
	ch := make(chan Config, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("hold_down_time: -1\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))

	assert.Equal(t, 180, h.Get().HoldDownTime)
	assert.Empty(t, ch)
}

func TestHolder_FullListenerIsSkipped(t *testing.T) {
	h, _ := loadHolder(t, "hold_down_time: 180\n")
	full := make(chan Config)
	h.RegisterListener(full)
	require.NoError(t, h.Reload(context.Background()))
}

func TestHolder_WatcherDisabledWithoutFile(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", ""))
	require.NoError(t, h.StartWatcher(context.Background()))
}

func TestHolder_WatcherReloadsOnWrite(t *testing.T) {
	h, path := loadHolder(t, "hold_down_time: 180\n")
	h.debounce = 10 * time.Millisecond
	ch := make(chan Config, 4)
	h.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte("hold_down_time: 60\n"), 0o600))

	select {
	case got := <-ch:
		assert.Equal(t, 60, got.HoldDownTime)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}
}
