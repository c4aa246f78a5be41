// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"context"

	"github.com/osmo-project/osmo/internal/model"
)

// Notification is what the State Machine hands to a Notifier on a
// workflow's terminal transition (§4.6 "Notifications") or a task exit
// action with notify=true (§9). TaskName is empty for a workflow-level
// notification.
type Notification struct {
	WorkflowUUID   string
	TaskName       string
	TaskStatus     model.TaskStatus
	WorkflowStatus model.WorkflowStatus
}

// Notifier delivers a Notification through whatever transport the user's
// profile opts into. The email/chat transports themselves are out of
// scope (§1); this is the seam the (external) notifier service implements.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ProfileOptedIn reports whether a user's notification profile opts into
// terminal-transition notifications.
type ProfileOptedIn func(user string) bool

// NotifyOnTerminal sends a workflow-level notification exactly when the
// transition from prev to next newly entered a terminal workflow status
// and the submitter's profile opts in. Re-running the same rollup on an
// already-terminal workflow (prev already Finished) is a no-op, so a
// notification fires once per workflow.
func NotifyOnTerminal(ctx context.Context, notifier Notifier, optedIn ProfileOptedIn, wf model.Workflow, prev, next model.WorkflowStatus) error {
	if prev.Finished() || !next.Finished() {
		return nil
	}
	if notifier == nil || optedIn == nil || !optedIn(wf.SubmittedBy) {
		return nil
	}
	return notifier.Notify(ctx, Notification{WorkflowUUID: wf.WorkflowUUID, WorkflowStatus: next})
}
