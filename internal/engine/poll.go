// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"time"

	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/store"
)

// aliveStatuses are the non-terminal workflow statuses the poll loop
// keeps re-evaluating.
var aliveStatuses = []model.WorkflowStatus{model.WorkflowWaiting, model.WorkflowPending, model.WorkflowRunning}

// RunPollLoop re-derives every non-terminal workflow's status from its
// groups and checks its queue/exec timeout on a fixed interval, the
// background loop §5 names ("long-lived background loops: ... workflow
// status rollup"). It runs until ctx is canceled.
func (e *Engine) RunPollLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	workflows, err := e.Store.ListWorkflows(ctx, store.ListWorkflowsFilter{Statuses: aliveStatuses})
	if err != nil {
		e.Logger.Error("poll loop: list alive workflows", "error", err)
		return
	}
	for _, wf := range workflows {
		if _, err := e.Machine.AdvanceWorkflow(ctx, wf); err != nil {
			e.Logger.Error("poll loop: advance workflow", "workflow_id", wf.ID(), "error", err)
			continue
		}
		if _, err := e.Machine.CheckWorkflowTimeout(ctx, wf, wf.StartTime); err != nil {
			e.Logger.Error("poll loop: check workflow timeout", "workflow_id", wf.ID(), "error", err)
		}
	}
}
