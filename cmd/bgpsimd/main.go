// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// bgpsimd runs a set of BGP sessions against simulated peers, withdrawing
// routes whenever a session's hold-down timer expires.
//
// Usage:
//
//	bgpsimd [-config bgpsim.yaml]
//	bgpsimd config validate -f bgpsim.yaml
//	bgpsimd config dump [-f bgpsim.yaml] [--format=yaml|json]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/bgpsim/internal/config"
	"github.com/ManuGH/bgpsim/internal/daemon"
	xglog "github.com/ManuGH/bgpsim/internal/log"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "config" {
		os.Exit(runConfigCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "bgpsim", Version: version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = strings.TrimSpace(config.ParseString(config.EnvPrefix+"CONFIG", ""))
	}

	loader := config.NewLoader(path, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "bgpsim", Version: cfg.Version})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", path).
		Str("mode", string(cfg.Mode)).
		Int("interfaces", cfg.Interfaces).
		Int("peers", len(cfg.Peers)).
		Msg("configuration loaded")

	var holder *config.Holder
	if path != "" {
		holder = config.NewHolder(cfg, loader)
	}

	app, err := daemon.NewApp(cfg, holder, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.init_failed").Msg("failed to initialise")
	}

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "daemon.run_failed").Msg("run failed")
		stop()
		os.Exit(1)
	}
	logger.Info().Str("event", "daemon.stopped").Msg("bgpsimd stopped")
}
