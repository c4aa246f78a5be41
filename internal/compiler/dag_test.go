// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmo-project/osmo/internal/model"
)

func TestValidateDAG_ForwardReferenceRejected(t *testing.T) {
	groups := []model.GroupSpec{
		{Name: "a", Inputs: []model.InputRef{{Group: "b"}}},
		{Name: "b"},
	}
	err := ValidateDAG(groups, nil)
	require.Error(t, err)
	assert.True(t, IsUserError(err))
}

func TestValidateDAG_SelfReferenceRejected(t *testing.T) {
	groups := []model.GroupSpec{
		{Name: "a", Tasks: []model.TaskSpec{{Name: "a", Inputs: []model.InputRef{{Task: "a"}}}}},
	}
	err := ValidateDAG(groups, nil)
	require.Error(t, err)
}

func TestValidateDAG_ValidBackReferenceAccepted(t *testing.T) {
	groups := []model.GroupSpec{
		{Name: "a"},
		{Name: "b", Inputs: []model.InputRef{{Group: "a"}}},
	}
	assert.NoError(t, ValidateDAG(groups, nil))
}

func TestValidateDAG_CrossWorkflowInputResolved(t *testing.T) {
	groups := []model.GroupSpec{
		{Name: "a", Tasks: []model.TaskSpec{
			{Name: "t1", Inputs: []model.InputRef{{Task: "wf-3:upstream-task"}}},
		}},
	}
	resolver := func(workflowID, taskName string) (model.Task, bool, error) {
		assert.Equal(t, "wf-3", workflowID)
		assert.Equal(t, "upstream-task", taskName)
		return model.Task{Status: model.TaskCompleted}, true, nil
	}
	assert.NoError(t, ValidateDAG(groups, resolver))
}

func TestValidateDAG_CrossWorkflowInputNotFinishedRejected(t *testing.T) {
	groups := []model.GroupSpec{
		{Name: "a", Tasks: []model.TaskSpec{
			{Name: "t1", Inputs: []model.InputRef{{Task: "wf-3:upstream-task"}}},
		}},
	}
	resolver := func(workflowID, taskName string) (model.Task, bool, error) {
		return model.Task{Status: model.TaskRunning}, true, nil
	}
	err := ValidateDAG(groups, resolver)
	require.Error(t, err)
	assert.True(t, IsUserError(err))
}

func TestValidateDAG_URLInputCarriesNoEdge(t *testing.T) {
	groups := []model.GroupSpec{
		{Name: "a", Tasks: []model.TaskSpec{
			{Name: "t1", Inputs: []model.InputRef{{URL: "s3://bucket/key"}}},
		}},
	}
	assert.NoError(t, ValidateDAG(groups, nil))
}
