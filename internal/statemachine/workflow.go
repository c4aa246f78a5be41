// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import "github.com/osmo-project/osmo/internal/model"

// groupFailurePrecedence ranks a failed group's status for the §4.6
// workflow tie-break: "FAILED_CANCELED > FAILED_SERVER_ERROR >
// FAILED_EXEC_TIMEOUT > FAILED_QUEUE_TIMEOUT > other specific failure >
// FAILED". FAILED_UPSTREAM is the only group status left over once the
// four named ones are accounted for, so it occupies the "other specific
// failure" tier; Workflow carries no status of its own for it (see
// groupStatusToWorkflowStatus), but it still outranks generic FAILED when
// choosing which group's failure the workflow reports.
var groupFailurePrecedence = map[model.GroupStatus]int{
	model.GroupFailedCanceled:     0,
	model.GroupFailedServerError:  1,
	model.GroupFailedExecTimeout:  2,
	model.GroupFailedQueueTimeout: 3,
	model.GroupFailedUpstream:     4,
	model.GroupFailed:             5,
}

var groupStatusToWorkflowStatus = map[model.GroupStatus]model.WorkflowStatus{
	model.GroupFailedCanceled:     model.WorkflowFailedCanceled,
	model.GroupFailedServerError:  model.WorkflowFailedServerError,
	model.GroupFailedExecTimeout:  model.WorkflowFailedExecTimeout,
	model.GroupFailedQueueTimeout: model.WorkflowFailedQueueTimeout,
	model.GroupFailedUpstream:     model.WorkflowFailed,
	model.GroupFailed:             model.WorkflowFailed,
}

// RollupWorkflow computes a workflow's status as a pure function of its
// groups' current statuses (§4.6 "Workflow status"), applying the tie-break
// precedence above to pick the winning failure when more than one group is
// failed. WAITING has no surviving group-level source (group rollup never
// produces it) and so is never returned here; a workflow still in WAITING
// before its groups exist is an admission-time concern, not a rollup one.
func RollupWorkflow(groups []model.GroupStatus) model.WorkflowStatus {
	if len(groups) == 0 {
		return model.WorkflowPending
	}

	bestFailure := model.GroupStatus("")
	bestRank := -1
	anyRunning, allCompleted := false, true

	for _, g := range groups {
		if g.Failed() {
			if rank, ok := groupFailurePrecedence[g]; ok && (bestRank == -1 || rank < bestRank) {
				bestRank = rank
				bestFailure = g
			}
			allCompleted = false
			continue
		}
		if g != model.GroupCompleted {
			allCompleted = false
		}
		if g == model.GroupRunning {
			anyRunning = true
		}
	}

	if bestRank != -1 {
		return groupStatusToWorkflowStatus[bestFailure]
	}
	if allCompleted {
		return model.WorkflowCompleted
	}
	if anyRunning {
		return model.WorkflowRunning
	}
	return model.WorkflowPending
}
