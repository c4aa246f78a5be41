// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osmo-project/osmo/internal/model"
)

func TestSummarizeTasksCountsPerStatus(t *testing.T) {
	tasks := []model.Task{
		{Status: model.TaskRunning},
		{Status: model.TaskRunning},
		{Status: model.TaskCompleted},
	}
	summary := summarizeTasks(tasks)
	assert.Equal(t, 2, summary[model.TaskRunning])
	assert.Equal(t, 1, summary[model.TaskCompleted])
}

func TestAggregateTasksByWorkflowGroupsByWorkflowID(t *testing.T) {
	tasks := []model.Task{
		{WorkflowID: "wf-1-1", Status: model.TaskRunning},
		{WorkflowID: "wf-1-1", Status: model.TaskFailed},
		{WorkflowID: "wf-2-1", Status: model.TaskRunning},
	}
	byWorkflow := aggregateTasksByWorkflow(tasks)
	assert.Len(t, byWorkflow, 2)
	assert.Equal(t, 1, byWorkflow["wf-1-1"][model.TaskRunning])
	assert.Equal(t, 1, byWorkflow["wf-1-1"][model.TaskFailed])
	assert.Equal(t, 1, byWorkflow["wf-2-1"][model.TaskRunning])
}
