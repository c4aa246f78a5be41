// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package cmd builds osmoctl's cobra command tree. Every RunE closure
// calls straight into an internal/engine.Engine built once in
// PersistentPreRunE — there is no HTTP client here, since osmoctl and
// cmd/osmo-server share that engine in-process rather than over a wire
// protocol (§1 Non-goals: no HTTP/REST surface).
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/osmo-project/osmo/internal/engine"
)

// App is everything a command's RunE needs, built once per invocation
// from the --config flag.
type App struct {
	Engine *engine.Engine
}

// BuildApp loads configuration and wires an Engine from it.
type BuildApp func(configPath string) (*App, error)

// NewRootCmd assembles the full osmoctl command tree. build is called
// exactly once, in the root command's PersistentPreRunE, so every flag
// (including a non-default --config) is already parsed by the time it
// runs.
func NewRootCmd(build BuildApp) *cobra.Command {
	var configPath string
	var app *App

	root := &cobra.Command{
		Use:           "osmoctl",
		Short:         "Submit and manage OSMO workflows",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			built, err := build(configPath)
			if err != nil {
				return err
			}
			app = built
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	appRef := func() *App { return app }

	root.AddCommand(
		newWorkflowCmd(appRef),
		newTaskCmd(appRef),
		newConfigCmd(appRef),
		newPoolCmd(appRef),
	)
	return root
}
