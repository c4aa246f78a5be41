// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/osmo-project/osmo/internal/statemachine"
)

// CancelWorkflow runs §6's `workflow cancel <id> [--force] [--message]`
// against the named workflow, delegating to the State Machine's Cancel.
func (e *Engine) CancelWorkflow(ctx context.Context, workflowUUID string, force bool, requestedBy, message string) (jobID string, err error) {
	wf, err := e.Store.GetWorkflow(ctx, workflowUUID)
	if err != nil {
		return "", err
	}
	if err := e.Authorize(requestedBy, wf.Pool, "workflow:cancel"); err != nil {
		return "", err
	}
	jobID, err = e.Machine.Cancel(ctx, wf, statemachine.CancelRequest{RequestedBy: requestedBy, Force: force})
	if err != nil {
		return "", err
	}
	if message != "" {
		e.Logger.Info("workflow cancelled", "workflow_id", wf.ID(), "requested_by", requestedBy, "message", message)
	}
	return jobID, nil
}

// AdvanceWorkflow recomputes and persists a workflow's status from its
// current groups, the operation the background poll loop in
// cmd/osmo-server runs continuously; exposed here so osmoctl can also
// force a synchronous recheck (e.g. right after a cascade cancel).
func (e *Engine) AdvanceWorkflow(ctx context.Context, workflowUUID string) error {
	wf, err := e.Store.GetWorkflow(ctx, workflowUUID)
	if err != nil {
		return err
	}
	if _, err := e.Machine.AdvanceWorkflow(ctx, wf); err != nil {
		return fmt.Errorf("advance workflow %q: %w", workflowUUID, err)
	}
	return nil
}
