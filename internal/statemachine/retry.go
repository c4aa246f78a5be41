// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import "github.com/osmo-project/osmo/internal/model"

// RetryDecision is what the State Machine does about a task that just
// reached a failed terminal status (§4.6 "Retries").
type RetryDecision int

const (
	NoRetry RetryDecision = iota
	RetryTask
	RerunBarrierGroup
)

// DecideRetry applies §4.6's retry rule: a task in a non-barrier group may
// move from a failed terminal to RESCHEDULED provided the backend/scheduler
// allows it (retryAllowed); a cancellation is never retried. A barrier
// group reruns every task in the group on any single failure, regardless
// of retryAllowed.
func DecideRetry(status model.TaskStatus, barrier, retryAllowed bool) RetryDecision {
	if !status.Failed() || status == model.TaskFailedCanceled {
		return NoRetry
	}
	if barrier {
		return RerunBarrierGroup
	}
	if retryAllowed {
		return RetryTask
	}
	return NoRetry
}

// NextRetry builds the new Task row for a retried attempt: same
// TaskDBKey/Name/GroupName, a fresh TaskUUID, RetryID incremented one past
// prev, status reset to WAITING with no scheduling state carried over.
func NextRetry(prev model.Task, taskUUID string) model.Task {
	next := prev
	next.TaskUUID = taskUUID
	next.RetryID = prev.RetryID + 1
	next.Status = model.TaskWaiting
	next.NodeName = ""
	next.StartTime = nil
	next.EndTime = nil
	next.LastHeartbeat = nil
	return next
}
