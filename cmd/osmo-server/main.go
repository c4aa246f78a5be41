// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Command osmo-server runs the background half of the control plane: the
// workflow status rollup/timeout poll loop and the per-backend heartbeat
// reaper (§5 "long-lived background loops"). It shares every collaborator
// with cmd/osmoctl through internal/bootstrap and internal/engine; the two
// never talk to each other over the network (§1 Non-goals: no HTTP/REST
// surface).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/osmo-project/osmo/internal/backend"
	"github.com/osmo-project/osmo/internal/bootstrap"
	"github.com/osmo-project/osmo/internal/logging"
)

func main() {
	flags := pflag.NewFlagSet("osmo-server", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	_ = flags.Parse(os.Args[1:])

	cfg, err := bootstrap.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "osmo-server:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("osmo-server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg bootstrap.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	built, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var reaper *backend.Reaper
	if len(built.Transports) > 0 {
		reaper = backend.NewReaper(built.Transports, built.Engine.Store, logger)
		go reaper.Run(ctx)
	}

	go built.Engine.RunPollLoop(ctx, cfg.PollInterval)

	logger.Info("osmo-server started", "backends", len(built.Transports), "poll_interval", cfg.PollInterval)
	<-ctx.Done()
	logger.Info("osmo-server shutting down")
	return nil
}
