// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmo-project/osmo/internal/compiler"
	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/render"
)

func sampleCompiledWorkflow() *compiler.CompiledWorkflow {
	return &compiler.CompiledWorkflow{
		Name: "train-model",
		Groups: []compiler.CompiledGroup{
			{
				Spec: model.GroupSpec{Name: "fit"},
				Tasks: []compiler.CompiledTask{
					{
						Spec:         model.TaskSpec{Name: "train"},
						ResourceSpec: model.ResourceSpec{Platform: "default", GPU: 2},
						Pod:          map[string]any{},
					},
				},
			},
		},
	}
}

func TestAdmit_ValidationOnlyRunsAssertionsButSkipsNodeSelection(t *testing.T) {
	wf := sampleCompiledWorkflow()
	opts := Options{
		Mode:   ValidationOnly,
		Engine: render.NewEngine(),
		Pool:   model.Pool{DefaultPlatform: "default"},
		Platform: func(name string) (model.Platform, bool) {
			return model.Platform{Name: "default"}, true
		},
		Nodes: func(platform string) ([]NodeCandidate, error) {
			t.Fatal("ValidationOnly must not select nodes")
			return nil, nil
		},
	}

	result, err := Admit(context.Background(), wf, opts)
	require.NoError(t, err)
	require.Len(t, result.Tasks, 1)
	assert.Empty(t, result.Tasks[0].Node)
}

func TestAdmit_StaticAssertionFailureRejects(t *testing.T) {
	wf := sampleCompiledWorkflow()
	opts := Options{
		Mode:   ValidationOnly,
		Engine: render.NewEngine(),
		Pool:   model.Pool{DefaultPlatform: "default", CommonResourceValidations: []string{"gpu-cap"}},
		Platform: func(name string) (model.Platform, bool) {
			return model.Platform{Name: "default"}, true
		},
		ResolveAssertions: func(names []string) ([]model.Assertion, error) {
			return []model.Assertion{
				{Operator: model.OpLE, AssertMessage: "gpu <= 1", LeftOperand: "USER_GPU", RightOperand: "1"},
			}, nil
		},
		StaticCache: NewStaticAssertionCache(render.NewEngine()),
	}

	_, err := Admit(context.Background(), wf, opts)
	require.Error(t, err)
	assert.True(t, IsUserError(err))
}

func TestAdmit_FullModeSelectsNodeAndEnforcesQuota(t *testing.T) {
	wf := sampleCompiledWorkflow()
	opts := Options{
		Mode:   Full,
		Engine: render.NewEngine(),
		Pool:   model.Pool{DefaultPlatform: "default"},
		Platform: func(name string) (model.Platform, bool) {
			return model.Platform{Name: "default"}, true
		},
		ResolveAssertions: func(names []string) ([]model.Assertion, error) {
			return []model.Assertion{
				{Operator: model.OpLE, AssertMessage: "fits", LeftOperand: "USER_GPU", RightOperand: "K8_ALLOCATABLE_GPU"},
			}, nil
		},
		Nodes: func(platform string) ([]NodeCandidate, error) {
			return []NodeCandidate{
				{Hostname: "node-1", AllocatableField: map[string]any{"K8_ALLOCATABLE_GPU": int64(4)}},
			}, nil
		},
		UserLimits: UserWorkflowLimits{MaxNumWorkflows: 5, MaxNumTasks: 5},
		UserLoad:   UserLoad{AliveWorkflows: 1, AliveTasks: 1},
	}

	result, err := Admit(context.Background(), wf, opts)
	require.NoError(t, err)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "node-1", result.Tasks[0].Node)
}

func TestAdmit_FullModeRejectsWhenQuotaExceeded(t *testing.T) {
	wf := sampleCompiledWorkflow()
	opts := Options{
		Mode:   Full,
		Engine: render.NewEngine(),
		Pool:   model.Pool{DefaultPlatform: "default"},
		Platform: func(name string) (model.Platform, bool) {
			return model.Platform{Name: "default"}, true
		},
		UserLimits: UserWorkflowLimits{MaxNumTasks: 1},
		UserLoad:   UserLoad{AliveTasks: 1},
	}

	_, err := Admit(context.Background(), wf, opts)
	require.Error(t, err)
	assert.True(t, IsUserError(err))
}

func TestAdmit_PodSecurityRejectsDisallowedPrivileged(t *testing.T) {
	wf := sampleCompiledWorkflow()
	wf.Groups[0].Tasks[0].Spec.Privileged = true
	opts := Options{
		Mode:   ValidationOnly,
		Engine: render.NewEngine(),
		Pool:   model.Pool{DefaultPlatform: "default"},
		Platform: func(name string) (model.Platform, bool) {
			return model.Platform{Name: "default", AllowPrivileged: false}, true
		},
		SecurityCache: NewPodSecurityCache(),
	}

	_, err := Admit(context.Background(), wf, opts)
	require.Error(t, err)
	assert.True(t, IsUserError(err))
}
