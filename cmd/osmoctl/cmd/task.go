// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/osmo-project/osmo/internal/engine"
	"github.com/osmo-project/osmo/internal/model"
)

func newTaskCmd(appRef func() *App) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect task attempts",
	}
	taskCmd.AddCommand(newTaskListCmd(appRef))
	return taskCmd
}

func newTaskListCmd(appRef func() *App) *cobra.Command {
	var (
		workflowID     string
		statuses       []string
		summary        bool
		aggregateByWF  bool
		verbose        bool
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List task attempts for a workflow",
		RunE: func(c *cobra.Command, args []string) error {
			filter := engine.TaskListFilter{WorkflowID: workflowID}
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, model.TaskStatus(strings.ToUpper(s)))
			}

			tasks, err := appRef().Engine.ListTasks(c.Context(), filter)
			if err != nil {
				return err
			}

			switch {
			case aggregateByWF:
				return printJSON(c, aggregateTasksByWorkflow(tasks))
			case summary && !verbose:
				return printJSON(c, summarizeTasks(tasks))
			default:
				return printJSON(c, tasks)
			}
		},
	}
	listCmd.Flags().StringVar(&workflowID, "workflow-id", "", "restrict to one workflow")
	listCmd.Flags().StringSliceVar(&statuses, "statuses", nil, "filter by task status")
	listCmd.Flags().BoolVar(&summary, "summary", false, "print per-status counts instead of full task rows")
	listCmd.Flags().BoolVar(&aggregateByWF, "aggregate-by-workflow", false, "group counts by workflow id")
	listCmd.Flags().BoolVar(&verbose, "verbose", false, "print every field, overriding --summary")
	return listCmd
}

// taskSummary is §6 `task list --summary`'s output shape: one count per
// status across the filtered set.
type taskSummary map[model.TaskStatus]int

func summarizeTasks(tasks []model.Task) taskSummary {
	out := make(taskSummary)
	for _, t := range tasks {
		out[t.Status]++
	}
	return out
}

// aggregateTasksByWorkflow implements `task list --aggregate-by-workflow`:
// one summary per workflow id among the filtered tasks.
func aggregateTasksByWorkflow(tasks []model.Task) map[string]taskSummary {
	out := make(map[string]taskSummary)
	for _, t := range tasks {
		wf := out[t.WorkflowID]
		if wf == nil {
			wf = make(taskSummary)
			out[t.WorkflowID] = wf
		}
		wf[t.Status]++
	}
	return out
}
