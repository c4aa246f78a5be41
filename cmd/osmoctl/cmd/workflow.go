// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/osmo-project/osmo/internal/engine"
	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/store"
)

func newWorkflowCmd(appRef func() *App) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Submit and manage workflows",
	}
	workflowCmd.AddCommand(
		newWorkflowSubmitCmd(appRef),
		newWorkflowListCmd(appRef),
		newWorkflowCancelCmd(appRef),
		newWorkflowRestartCmd(appRef),
	)
	return workflowCmd
}

func parseKV(pairs []string, sep string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, sep)
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

func newWorkflowSubmitCmd(appRef func() *App) *cobra.Command {
	var (
		setValues    []string
		setStrings   []string
		env          []string
		dryRun       bool
		validateOnly bool
		priority     string
		pool         string
	)

	submitCmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit a workflow spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			setKV := parseKV(setValues, "=")
			setAny := make(map[string]any, len(setKV))
			for k, v := range setKV {
				var typed any
				if err := yaml.Unmarshal([]byte(v), &typed); err != nil {
					typed = v
				}
				setAny[k] = typed
			}
			envKV := parseKV(env, "=")
			for k, v := range envKV {
				setAny["env."+k] = v
			}

			req := engine.SubmitRequest{
				RawSpec:         string(raw),
				SetValues:       setAny,
				SetStringValues: parseKV(setStrings, "="),
				User:            os.Getenv("USER"),
				Pool:            pool,
				Priority:        model.Priority(strings.ToUpper(priority)),
				ValidationOnly:  validateOnly,
				DryRun:          dryRun,
			}

			result, err := appRef().Engine.Submit(c.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(c, result)
		},
	}
	submitCmd.Flags().StringArrayVar(&setValues, "set", nil, "override a value (k=v), parsed as typed YAML")
	submitCmd.Flags().StringArrayVar(&setStrings, "set-string", nil, "override a value (k=v), always a string")
	submitCmd.Flags().StringArrayVar(&env, "env", nil, "expose KEY=VAL to the spec template as the variable env.KEY; task environments are not changed")
	submitCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compile and admit but do not persist or schedule")
	submitCmd.Flags().BoolVar(&validateOnly, "validation-only", false, "render, compile and run validation checks only; no node selection, quota check or persistence")
	submitCmd.Flags().StringVar(&priority, "priority", "normal", "one of high, normal, low")
	submitCmd.Flags().StringVar(&pool, "pool", "", "pool name, overriding the spec's own pool field")
	return submitCmd
}

func newWorkflowListCmd(appRef func() *App) *cobra.Command {
	var (
		users           []string
		pools           []string
		statuses        []string
		tags            []string
		priority        string
		submittedBefore string
		submittedAfter  string
		offset          int
		limit           int
		order           string
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(c *cobra.Command, args []string) error {
			filter := store.ListWorkflowsFilter{
				Users:      users,
				Pools:      pools,
				Offset:     offset,
				Limit:      limit,
				Descending: order != "asc",
			}
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, model.WorkflowStatus(strings.ToUpper(s)))
			}
			if submittedBefore != "" {
				t, err := time.Parse(time.RFC3339, submittedBefore)
				if err != nil {
					return fmt.Errorf("--submitted-before: %w", err)
				}
				filter.SubmittedBefore = &t
			}
			if submittedAfter != "" {
				t, err := time.Parse(time.RFC3339, submittedAfter)
				if err != nil {
					return fmt.Errorf("--submitted-after: %w", err)
				}
				filter.SubmittedAfter = &t
			}

			workflows, err := appRef().Engine.ListWorkflows(c.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(c, workflows)
		},
	}
	listCmd.Flags().StringSliceVar(&users, "users", nil, "filter by submitter")
	listCmd.Flags().StringSliceVar(&pools, "pools", nil, "filter by pool")
	listCmd.Flags().StringSliceVar(&statuses, "statuses", nil, "filter by workflow status")
	listCmd.Flags().StringSliceVar(&tags, "tags", nil, "filter by tag (reserved, not yet indexed by the durable store)")
	listCmd.Flags().StringVar(&priority, "priority", "", "filter by priority (reserved, not yet indexed by the durable store)")
	listCmd.Flags().StringVar(&submittedBefore, "submitted-before", "", "RFC3339 timestamp")
	listCmd.Flags().StringVar(&submittedAfter, "submitted-after", "", "RFC3339 timestamp")
	listCmd.Flags().IntVar(&offset, "offset", 0, "result offset")
	listCmd.Flags().IntVar(&limit, "limit", 50, "result limit")
	listCmd.Flags().StringVar(&order, "order", "desc", "asc or desc by submit time")
	return listCmd
}

func newWorkflowCancelCmd(appRef func() *App) *cobra.Command {
	var (
		force   bool
		message string
	)
	cancelCmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			jobID, err := appRef().Engine.CancelWorkflow(c.Context(), args[0], force, os.Getenv("USER"), message)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), jobID)
			return nil
		},
	}
	cancelCmd.Flags().BoolVar(&force, "force", false, "cancel even if the workflow has already finished")
	cancelCmd.Flags().StringVar(&message, "message", "", "cancellation reason recorded on the workflow")
	return cancelCmd
}

func newWorkflowRestartCmd(appRef func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <id>",
		Short: "Resubmit a workflow's incomplete groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			result, err := appRef().Engine.Restart(c.Context(), engine.RestartRequest{
				ParentWorkflowID: args[0],
				User:             os.Getenv("USER"),
			})
			if err != nil {
				return err
			}
			return printJSON(c, result)
		},
	}
}

func printJSON(c *cobra.Command, v any) error {
	enc := json.NewEncoder(c.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
