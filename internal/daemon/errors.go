// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrServerStartFailed is returned when the ops HTTP server fails to start.
	ErrServerStartFailed = errors.New("server failed to start")

	// ErrAlreadyRunning is returned by a second concurrent App.Run.
	ErrAlreadyRunning = errors.New("app already running")
)
