// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"time"
)

// Priority is the workflow scheduling priority (§3). LOW is preemptible.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// Preemptible reports whether p does not consume guaranteed quota and may
// be evicted by higher-priority admissions.
func (p Priority) Preemptible() bool { return p == PriorityLow }

// WorkflowStatus is a workflow's status, a pure function of its groups
// (§4.6). WAITING is carried in the taxonomy but is not written by the
// state machine.
type WorkflowStatus string

const (
	WorkflowWaiting WorkflowStatus = "WAITING"
	WorkflowPending WorkflowStatus = "PENDING"
	WorkflowRunning WorkflowStatus = "RUNNING"

	WorkflowCompleted          WorkflowStatus = "COMPLETED"
	WorkflowFailed             WorkflowStatus = "FAILED"
	WorkflowFailedCanceled     WorkflowStatus = "FAILED_CANCELED"
	WorkflowFailedServerError  WorkflowStatus = "FAILED_SERVER_ERROR"
	WorkflowFailedExecTimeout  WorkflowStatus = "FAILED_EXEC_TIMEOUT"
	WorkflowFailedQueueTimeout WorkflowStatus = "FAILED_QUEUE_TIMEOUT"
)

var terminalWorkflowStatuses = map[WorkflowStatus]bool{
	WorkflowCompleted:          true,
	WorkflowFailed:             true,
	WorkflowFailedCanceled:     true,
	WorkflowFailedServerError:  true,
	WorkflowFailedExecTimeout:  true,
	WorkflowFailedQueueTimeout: true,
}

// Finished reports whether s is one of the terminal workflow statuses.
func (s WorkflowStatus) Finished() bool { return terminalWorkflowStatuses[s] }

// Workflow is a single submitted unit of work (§3). Created on admission,
// mutated only through the state machine, never deleted.
type Workflow struct {
	WorkflowUUID string
	Name         string
	JobID        int64 // monotonically increasing per Name
	SubmittedBy  string
	Backend      string
	Pool         string
	Priority     Priority
	Status       WorkflowStatus

	SubmitTime time.Time
	StartTime  *time.Time
	EndTime    *time.Time

	ExecTimeout  time.Duration
	QueueTimeout time.Duration

	ParentName  string
	ParentJobID int64

	AppUUID    string
	AppVersion string

	Tags    map[string]string
	Plugins map[string]any

	CancelledBy    string
	FailureMessage string
	LogsURL        string
	OutputsBaseURL string
}

// ID derives the opaque workflow_id = "{name}-{job_id}" (§3, invariant 1).
func (w Workflow) ID() string {
	return fmt.Sprintf("%s-%d", w.Name, w.JobID)
}

// ForceCancelJobID derives the synthetic job identifier used to record a
// forced cancellation of an already-finished workflow (§4.6).
func ForceCancelJobID(workflowUUID, shortID string) string {
	return fmt.Sprintf("%s-%s-force-cancel", workflowUUID, shortID)
}
