// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmo-project/osmo/internal/compiler"
	"github.com/osmo-project/osmo/internal/model"
)

func sampleCompiledWorkflow() *compiler.CompiledWorkflow {
	return &compiler.CompiledWorkflow{
		Name: "train-model",
		Groups: []compiler.CompiledGroup{
			{
				Spec: model.GroupSpec{Name: "fit"},
				Tasks: []compiler.CompiledTask{
					{Spec: model.TaskSpec{Name: "train"}, Pod: map[string]any{"containers": []any{}}},
				},
			},
		},
	}
}

type fakeApplier struct {
	calledCleanup   []CleanupSpec
	calledResources []any
}

func (f *fakeApplier) ApplyCleanupSpecs(ctx context.Context, cleanup []CleanupSpec, resources []any) error {
	f.calledCleanup = cleanup
	f.calledResources = resources
	return nil
}

func TestConvert_BuildsQueueAndPodGroupPerGroup(t *testing.T) {
	wf := sampleCompiledWorkflow()
	pool := model.Pool{Name: "gpu-pool", GPU: model.GPUQuota{Guarantee: -1, Maximum: -1}}
	caps := BackendCapabilities{Namespace: "osmo", SchedulerName: "kai-scheduler", QueueLabel: "kai.scheduler/queue", SupportsPriority: true}

	plan, err := Convert(wf, pool, caps, "wf-uuid", "alice", model.PriorityNormal, map[string]string{"fit": "group-1"}, map[string]map[string]string{"fit": {"train": "task-1"}})
	require.NoError(t, err)
	require.Len(t, plan.PodGroups, 1)
	assert.Equal(t, "group-1", plan.PodGroups[0].Name)
	assert.Equal(t, "osmo-pool-osmo-gpu-pool", plan.Queue.Name)
	assert.Equal(t, "osmo-default-osmo", plan.ParentQueue.Name)
	assert.Nil(t, plan.Topology)

	pod := plan.Pods["fit"]["train"].(map[string]any)
	assert.Equal(t, "kai-scheduler", pod["schedulerName"])
}

func TestConvert_MintsGroupUUIDWhenNotSupplied(t *testing.T) {
	wf := sampleCompiledWorkflow()
	pool := model.Pool{Name: "gpu-pool"}
	caps := BackendCapabilities{Namespace: "osmo"}

	plan, err := Convert(wf, pool, caps, "wf-uuid", "alice", model.PriorityNormal, nil, nil)
	require.NoError(t, err)
	require.Len(t, plan.PodGroups, 1)
	assert.NotEmpty(t, plan.PodGroups[0].Name)
}

func TestApply_MergesPriorCleanupSpecsIntoCall(t *testing.T) {
	wf := sampleCompiledWorkflow()
	pool := model.Pool{Name: "gpu-pool"}
	caps := BackendCapabilities{Namespace: "osmo"}
	plan, err := Convert(wf, pool, caps, "wf-uuid", "alice", model.PriorityNormal, nil, nil)
	require.NoError(t, err)

	prior := []CleanupSpec{{ResourceType: "PodGroup", Labels: map[string]string{LabelPool: "old-scheduler-pool"}}}
	applier := &fakeApplier{}

	err = Apply(context.Background(), applier, plan, prior)
	require.NoError(t, err)
	assert.Len(t, applier.calledCleanup, len(prior)+len(plan.Cleanup))
	assert.NotEmpty(t, applier.calledResources)
}
