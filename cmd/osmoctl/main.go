// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Command osmoctl is the operator/user CLI for §6's stable surface:
// workflow submit/list/cancel/restart, task list, config get/set/patch/
// rollback/diff/history, and pool quota. It builds the same
// internal/engine.Engine cmd/osmo-server runs, against the same database,
// and calls it directly — there is no HTTP/REST surface between them
// (§1 Non-goals).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/osmo-project/osmo/cmd/osmoctl/cmd"
	"github.com/osmo-project/osmo/internal/bootstrap"
	"github.com/osmo-project/osmo/internal/logging"
)

func main() {
	root := cmd.NewRootCmd(func(configPath string) (*cmd.App, error) {
		cfg, err := bootstrap.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logger := logging.New(cfg.Logging)
		built, err := bootstrap.Build(context.Background(), cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("build engine: %w", err)
		}
		return &cmd.App{Engine: built.Engine}, nil
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
