// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package statemachine implements the State Machine (§4.6): workflow→group→
// task status aggregation, retry semantics, cancellation, timeout-driven
// terminal states, and notifications. It depends on internal/model's status
// lattice and on narrow seams (Store, Notifier) for persistence and
// transport that internal/store and the notifier service supply.
package statemachine

import "github.com/osmo-project/osmo/internal/model"

// taskToGroupFailure maps a task's specific terminal failure reason to the
// group status it produces when every task in the group failed with the
// identical reason (§4.6 "If all failed reasons are the same non-
// FAILED_UPSTREAM -> the group takes that specific reason"). Reasons with
// no group-level status of their own (FAILED_IMAGE_PULL, FAILED_EVICTED,
// FAILED_START_ERROR, FAILED_START_TIMEOUT, FAILED_BACKEND_ERROR,
// FAILED_PREEMPTED, FAILED itself) fall through to the generic FAILED
// group status, and so does a uniform FAILED_UPSTREAM.
var taskToGroupFailure = map[model.TaskStatus]model.GroupStatus{
	model.TaskFailedCanceled:     model.GroupFailedCanceled,
	model.TaskFailedServerError:  model.GroupFailedServerError,
	model.TaskFailedExecTimeout:  model.GroupFailedExecTimeout,
	model.TaskFailedQueueTimeout: model.GroupFailedQueueTimeout,
}

// RollupGroup computes a group's status as a pure function of its tasks'
// current statuses (§4.6 "Group status"). It reflects only the group's own
// tasks; a group forced to FAILED_UPSTREAM because an upstream dependency
// failed is a separate decision the caller applies before its tasks ever
// run (see the TaskGroup.Upstream bookkeeping in internal/model).
//
// A RESCHEDULED task denotes a superseded attempt (a newer retry row under
// the same TaskDBKey is the one actually tracked going forward); per §4.6
// it counts toward "all tasks COMPLETED or RESCHEDULED -> COMPLETED" and
// never blocks the group or counts as a failure.
func RollupGroup(tasks []model.TaskStatus) model.GroupStatus {
	if len(tasks) == 0 {
		return model.GroupPending
	}

	anyAlive, anyRunning := false, false
	for _, s := range tasks {
		if s == model.TaskRescheduled {
			continue
		}
		if !s.Finished() {
			anyAlive = true
			if s == model.TaskRunning {
				anyRunning = true
			}
		}
	}
	if anyAlive {
		if anyRunning {
			return model.GroupRunning
		}
		return model.GroupPending
	}

	for _, s := range tasks {
		if s == model.TaskFailedCanceled {
			return model.GroupFailedCanceled
		}
	}

	var reason model.TaskStatus
	uniform, anyFailed := true, false
	for _, s := range tasks {
		if !s.Failed() {
			continue
		}
		anyFailed = true
		switch {
		case reason == "":
			reason = s
		case reason != s:
			uniform = false
		}
	}
	if anyFailed {
		if uniform && reason != model.TaskFailedUpstream {
			if gs, ok := taskToGroupFailure[reason]; ok {
				return gs
			}
		}
		return model.GroupFailed
	}

	return model.GroupCompleted
}
