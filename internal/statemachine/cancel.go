// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/osmo-project/osmo/internal/model"
)

// ErrAlreadyFinished is returned by Cancel when the workflow has already
// reached a terminal status and force was not set (§4.6 "Cancellation").
type ErrAlreadyFinished struct{ WorkflowID string }

func (e *ErrAlreadyFinished) Error() string {
	return fmt.Sprintf("workflow %q has already finished", e.WorkflowID)
}

// CancelRequest is one cancel(force) call against a workflow.
type CancelRequest struct {
	RequestedBy string
	Force       bool
}

// CancelStore is the compare-and-set primitive Cancel needs from the
// Durable Store: cancelled_by is set exactly once, so a second caller
// racing the first observes applied=false rather than overwriting it.
type CancelStore interface {
	CompareAndSetCancelledBy(ctx context.Context, workflowUUID, cancelledBy string) (applied bool, err error)
}

// CanCancel reports whether a cancel request against a workflow currently
// in status is allowed: rejected for finished workflows unless force=True.
func CanCancel(status model.WorkflowStatus, force bool) bool {
	return !status.Finished() || force
}

// ResolveJobID derives the job identifier a cancel should be recorded
// against: the workflow's own id, unless force-cancelling an
// already-finished workflow, in which case a synthetic identifier is
// minted so the forced cancellation is distinguishable in history (§4.6).
func ResolveJobID(wf model.Workflow, force bool) string {
	if wf.Status.Finished() && force {
		return model.ForceCancelJobID(wf.WorkflowUUID, shortID())
	}
	return wf.ID()
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Cancel runs a cancel(force) request against wf: it validates the request
// is allowed, derives the job identifier to record it under, and applies
// the compare-and-set on cancelled_by through store.
func Cancel(ctx context.Context, store CancelStore, wf model.Workflow, req CancelRequest) (jobID string, err error) {
	if !CanCancel(wf.Status, req.Force) {
		return "", &ErrAlreadyFinished{WorkflowID: wf.ID()}
	}

	jobID = ResolveJobID(wf, req.Force)

	applied, err := store.CompareAndSetCancelledBy(ctx, wf.WorkflowUUID, req.RequestedBy)
	if err != nil {
		return "", fmt.Errorf("cancel workflow %q: %w", wf.WorkflowUUID, err)
	}
	if !applied {
		// cancelled_by was already set by a prior call; idempotent no-op.
		return jobID, nil
	}
	return jobID, nil
}
