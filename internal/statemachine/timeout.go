// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"time"

	"github.com/osmo-project/osmo/internal/model"
)

// TimeoutResult names which timeout (if any) a workflow has breached.
type TimeoutResult int

const (
	NoTimeout TimeoutResult = iota
	QueueTimeout
	ExecTimeout
)

// Status maps a TimeoutResult to the terminal workflow status it drives;
// ok is false for NoTimeout.
func (r TimeoutResult) Status() (status model.WorkflowStatus, ok bool) {
	switch r {
	case QueueTimeout:
		return model.WorkflowFailedQueueTimeout, true
	case ExecTimeout:
		return model.WorkflowFailedExecTimeout, true
	default:
		return "", false
	}
}

// CheckTimeout applies §4.6 "Timeouts": queue_timeout counts from submit
// until the workflow's first task reaches RUNNING; exec_timeout counts
// from that first RUNNING instant to a terminal status. runningSince is nil
// until that first RUNNING transition has happened.
func CheckTimeout(wf model.Workflow, runningSince *time.Time, now time.Time) TimeoutResult {
	if runningSince == nil {
		if wf.QueueTimeout > 0 && now.Sub(wf.SubmitTime) >= wf.QueueTimeout {
			return QueueTimeout
		}
		return NoTimeout
	}
	if wf.ExecTimeout > 0 && now.Sub(*runningSince) >= wf.ExecTimeout {
		return ExecTimeout
	}
	return NoTimeout
}
