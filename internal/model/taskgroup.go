// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package model

// GroupStatus mirrors the subset of TaskStatus values a group can take on
// as the pure-function rollup of its tasks (§4.6), plus PENDING/RUNNING for
// the alive case.
type GroupStatus string

const (
	GroupPending   GroupStatus = "PENDING"
	GroupRunning   GroupStatus = "RUNNING"
	GroupCompleted GroupStatus = "COMPLETED"

	GroupFailed             GroupStatus = "FAILED"
	GroupFailedCanceled     GroupStatus = "FAILED_CANCELED"
	GroupFailedUpstream     GroupStatus = "FAILED_UPSTREAM"
	GroupFailedServerError  GroupStatus = "FAILED_SERVER_ERROR"
	GroupFailedExecTimeout  GroupStatus = "FAILED_EXEC_TIMEOUT"
	GroupFailedQueueTimeout GroupStatus = "FAILED_QUEUE_TIMEOUT"
)

var terminalGroupStatuses = map[GroupStatus]bool{
	GroupCompleted:          true,
	GroupFailed:             true,
	GroupFailedCanceled:     true,
	GroupFailedUpstream:     true,
	GroupFailedServerError:  true,
	GroupFailedExecTimeout:  true,
	GroupFailedQueueTimeout: true,
}

// Finished reports whether s is one of the terminal group statuses.
func (s GroupStatus) Finished() bool { return terminalGroupStatuses[s] }

// Failed reports whether s is terminal and not COMPLETED.
func (s GroupStatus) Failed() bool { return s.Finished() && s != GroupCompleted }

// TaskGroup is a barrier-named unit of concurrent tasks within a workflow.
type TaskGroup struct {
	GroupUUID  string
	WorkflowID string
	Name       string
	Spec       map[string]any // rendered group spec, including its tasks
	Status     GroupStatus
	Barrier    bool
	Upstream   map[string]struct{} // remaining_upstream_groups; decrements as they complete
	Downstream map[string]struct{}
}
