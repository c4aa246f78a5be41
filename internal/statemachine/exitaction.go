// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"context"
	"fmt"

	"github.com/osmo-project/osmo/internal/model"
)

// CancelFunc force-cancels a workflow in response to a cascading exit
// action; it mirrors Machine.Cancel without requiring the full Workflow
// row, since the runner only ever has a task's WorkflowID in hand.
type CancelFunc func(ctx context.Context, workflowUUID string) error

// ExitActionRunner evaluates a task's exit action table (§9 "Task exit
// actions") on its terminal transition, before group aggregation runs.
type ExitActionRunner struct {
	Notifier Notifier
	Cancel   CancelFunc
}

// Run evaluates task's ExitActions against its current terminal status. A
// task that is not yet terminal, or carries no action for its trigger, is a
// no-op. notify fires before cascadeCancel so the notification reflects
// the task's own outcome rather than racing the cancellation it triggers.
func (r ExitActionRunner) Run(ctx context.Context, task model.Task, workflowUUID string) error {
	if !task.Status.Finished() {
		return nil
	}

	trigger := model.ExitOnFailed
	if task.Status == model.TaskCompleted {
		trigger = model.ExitOnCompleted
	}

	action, ok := task.ExitActions[trigger]
	if !ok {
		return nil
	}

	if action.Notify && r.Notifier != nil {
		if err := r.Notifier.Notify(ctx, Notification{
			WorkflowUUID: workflowUUID,
			TaskName:     task.Name,
			TaskStatus:   task.Status,
		}); err != nil {
			return fmt.Errorf("exit action notify for task %q: %w", task.Name, err)
		}
	}

	if action.CascadeCancel && r.Cancel != nil {
		if err := r.Cancel(ctx, workflowUUID); err != nil {
			return fmt.Errorf("exit action cascade cancel for task %q: %w", task.Name, err)
		}
	}

	return nil
}
