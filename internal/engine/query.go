// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/store"
)

// ListWorkflows implements §6's `workflow list` surface directly against
// the durable store.
func (e *Engine) ListWorkflows(ctx context.Context, filter store.ListWorkflowsFilter) ([]model.Workflow, error) {
	return e.Store.ListWorkflows(ctx, filter)
}

// GetWorkflow returns one workflow by its opaque workflow_id's underlying
// UUID, the identifier the durable store keys on.
func (e *Engine) GetWorkflow(ctx context.Context, workflowUUID string) (model.Workflow, error) {
	return e.Store.GetWorkflow(ctx, workflowUUID)
}

// TaskListFilter narrows Engine.ListTasks (§6 `task list`'s
// --workflow-id/--statuses flags; --summary/--aggregate-by-workflow/
// --verbose are output-formatting concerns left to the CLI layer).
type TaskListFilter struct {
	WorkflowID string
	Statuses   []model.TaskStatus
}

// ListTasks returns every task attempt for filter.WorkflowID, optionally
// narrowed to a set of statuses.
func (e *Engine) ListTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error) {
	tasks, err := e.Store.TasksForWorkflow(ctx, filter.WorkflowID)
	if err != nil {
		return nil, err
	}
	if len(filter.Statuses) == 0 {
		return tasks, nil
	}
	want := make(map[model.TaskStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		want[st] = true
	}
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if want[t.Status] {
			out = append(out, t)
		}
	}
	return out, nil
}
