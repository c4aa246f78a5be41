// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/osmo-project/osmo/internal/model"
)

// Store is the subset of the Durable Store (internal/store) the State
// Machine depends on to read current status and persist transitions. A
// narrow seam here lets Machine be tested against a fake, the same way
// internal/scheduler depends on Applier rather than internal/backend.
type Store interface {
	CancelStore

	TaskStatuses(ctx context.Context, groupUUID string) ([]model.TaskStatus, error)
	GroupStatuses(ctx context.Context, workflowUUID string) ([]model.GroupStatus, error)
	SetGroupStatus(ctx context.Context, groupUUID string, status model.GroupStatus) error
	SetWorkflowStatus(ctx context.Context, workflowUUID string, status model.WorkflowStatus) error
}

// Machine ties the pure rollup/retry/timeout rules in this package to a
// Store and a Notifier, recomputing and persisting status on each call
// rather than holding any state of its own.
type Machine struct {
	Store    Store
	Notifier Notifier
	OptedIn  ProfileOptedIn
	// Now returns the current instant; overridable in tests. Defaults to
	// time.Now via New.
	Now func() time.Time
}

// New builds a Machine wired to store and notifier.
func New(store Store, notifier Notifier, optedIn ProfileOptedIn) *Machine {
	return &Machine{Store: store, Notifier: notifier, OptedIn: optedIn, Now: time.Now}
}

// AdvanceGroup recomputes one group's status from its tasks' current
// statuses and persists it.
func (m *Machine) AdvanceGroup(ctx context.Context, groupUUID string) (model.GroupStatus, error) {
	statuses, err := m.Store.TaskStatuses(ctx, groupUUID)
	if err != nil {
		return "", fmt.Errorf("advance group %q: load tasks: %w", groupUUID, err)
	}
	next := RollupGroup(statuses)
	if err := m.Store.SetGroupStatus(ctx, groupUUID, next); err != nil {
		return "", fmt.Errorf("advance group %q: persist status: %w", groupUUID, err)
	}
	return next, nil
}

// AdvanceWorkflow recomputes wf's status from its groups' current statuses,
// persists it, records a terminal-transition metric, and fires a
// notification if this call newly completed the workflow.
func (m *Machine) AdvanceWorkflow(ctx context.Context, wf model.Workflow) (model.WorkflowStatus, error) {
	statuses, err := m.Store.GroupStatuses(ctx, wf.WorkflowUUID)
	if err != nil {
		return "", fmt.Errorf("advance workflow %q: load groups: %w", wf.WorkflowUUID, err)
	}
	next := RollupWorkflow(statuses)
	if err := m.Store.SetWorkflowStatus(ctx, wf.WorkflowUUID, next); err != nil {
		return "", fmt.Errorf("advance workflow %q: persist status: %w", wf.WorkflowUUID, err)
	}
	if err := NotifyOnTerminal(ctx, m.Notifier, m.OptedIn, wf, wf.Status, next); err != nil {
		return next, fmt.Errorf("advance workflow %q: notify: %w", wf.WorkflowUUID, err)
	}
	if next.Finished() {
		RecordTerminalTransition(next)
	}
	return next, nil
}

// CheckWorkflowTimeout evaluates wf's queue/exec timeout against the
// current instant and, if breached, persists the terminal status and
// records it.
func (m *Machine) CheckWorkflowTimeout(ctx context.Context, wf model.Workflow, runningSince *time.Time) (TimeoutResult, error) {
	now := m.Now
	if now == nil {
		now = time.Now
	}
	result := CheckTimeout(wf, runningSince, now())
	status, ok := result.Status()
	if !ok {
		return NoTimeout, nil
	}
	if err := m.Store.SetWorkflowStatus(ctx, wf.WorkflowUUID, status); err != nil {
		return result, fmt.Errorf("timeout workflow %q: %w", wf.WorkflowUUID, err)
	}
	RecordTimeout(result)
	RecordTerminalTransition(status)
	return result, nil
}

// Cancel runs a cancel(force) request against wf (§4.6 "Cancellation").
func (m *Machine) Cancel(ctx context.Context, wf model.Workflow, req CancelRequest) (jobID string, err error) {
	return Cancel(ctx, m.Store, wf, req)
}
