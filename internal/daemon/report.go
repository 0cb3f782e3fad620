// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/renameio/v2"

	xglog "github.com/ManuGH/bgpsim/internal/log"
	"github.com/ManuGH/bgpsim/internal/session"
	"github.com/ManuGH/bgpsim/internal/supervisor"
)

// Report summarises one run.
type Report struct {
	Version         string             `json:"version,omitempty"`
	Mode            string             `json:"mode"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      time.Time          `json:"finished_at"`
	Sessions        []session.Snapshot `json:"sessions"`
	Events          []supervisor.Event `json:"events"`
	MessagesOut     map[string]int     `json:"messages_out"`
	RoutesRemaining int                `json:"routes_remaining"`
}

// WriteReport writes the report as indented JSON, atomically and durably.
func WriteReport(ctx context.Context, path string, rep Report) error {
	logger := xglog.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending report file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}
	return nil
}
