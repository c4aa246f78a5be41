// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/osmo-project/osmo/internal/compiler"
	"github.com/osmo-project/osmo/internal/model"
)

// BackendCapabilities narrows what the Bridge needs to know about the
// target backend's scheduler (§4.5 "If the target scheduler does not
// support priority, the bridge proceeds without priority annotations but
// still tracks priority in state"). A full Backend Interface (§4.8) lands
// in internal/backend; the Bridge only depends on this narrow seam so it
// can be built and tested ahead of it.
type BackendCapabilities struct {
	Namespace        string
	SchedulerName    string
	QueueLabel       string
	SupportsPriority bool
}

// Applier is the subset of the Backend Interface (§4.8) the Scheduler
// Bridge calls: reclaim everything matching cleanup, then apply the new
// resource list (`apply_cleanup_specs`).
type Applier interface {
	ApplyCleanupSpecs(ctx context.Context, cleanup []CleanupSpec, resources []any) error
}

// Plan is everything the Bridge built for one compiled workflow: the
// per-group PodGroups, the pool's Queue/parent-Queue/Topology, the
// cleanup descriptors covering all of them, and each task's pod with
// scheduler metadata merged in.
type Plan struct {
	PodGroups   []PodGroup
	Queue       Queue
	ParentQueue Queue
	Topology    *Topology
	Cleanup     []CleanupSpec
	// Pods maps "group/task" to the fully labeled pod object.
	Pods map[string]map[string]any
}

// objects flattens the plan into the resource list Applier.ApplyCleanupSpecs
// expects (PodGroups, Queue, parent Queue, Topology if present, then every
// pod), in a stable order.
func (p *Plan) objects() []any {
	out := make([]any, 0, len(p.PodGroups)+3+len(p.Pods))
	for _, pg := range p.PodGroups {
		out = append(out, pg)
	}
	out = append(out, p.Queue, p.ParentQueue)
	if p.Topology != nil {
		out = append(out, *p.Topology)
	}
	for _, group := range slices.Sorted(maps.Keys(p.Pods)) {
		pods := p.Pods[group]
		for _, task := range slices.Sorted(maps.Keys(pods)) {
			out = append(out, pods[task])
		}
	}
	return out
}

// Convert builds the full Plan for a compiled workflow against one pool
// (§4.5's overall responsibility: "convert a compiled workflow and the
// current pool table into scheduler-native objects"). workflowUUID/user
// identify the submission; priority is the workflow's resolved
// priority; groupUUIDs/taskUUIDs supply the stable identifiers the State
// Machine already minted for this workflow's groups/tasks.
func Convert(wf *compiler.CompiledWorkflow, pool model.Pool, caps BackendCapabilities, workflowUUID, user string, priority model.Priority, groupUUIDs map[string]string, taskUUIDs map[string]map[string]string) (*Plan, error) {
	plan := &Plan{
		Queue:       BuildQueue(caps.Namespace, pool),
		ParentQueue: BuildParentQueue(caps.Namespace),
		Topology:    BuildTopologyCRD(caps.Namespace, pool),
		Cleanup:     CleanupSpecsFor(pool.Name),
		Pods:        map[string]map[string]any{},
	}

	for _, group := range wf.Groups {
		groupUUID := groupUUIDs[group.Spec.Name]
		if groupUUID == "" {
			groupUUID = uuid.NewString()
		}
		identity := GroupIdentity{
			Namespace:        caps.Namespace,
			Pool:             pool.Name,
			GroupUUID:        groupUUID,
			WorkflowUUID:     workflowUUID,
			User:             user,
			Priority:         priority,
			TaskUUIDs:        taskUUIDs[group.Spec.Name],
			SchedulerName:    caps.SchedulerName,
			QueueLabel:       caps.QueueLabel,
			SupportsPriority: caps.SupportsPriority,
		}

		built, err := BuildPodGroup(group, pool, identity)
		if err != nil {
			return nil, fmt.Errorf("build pod group for %q: %w", group.Spec.Name, err)
		}
		plan.PodGroups = append(plan.PodGroups, built.PodGroup)

		pods := make(map[string]any, len(group.Tasks))
		for _, t := range group.Tasks {
			pods[t.Spec.Name] = ApplyPodMeta(t.Pod, built.PodLabels[t.Spec.Name], caps.SchedulerName)
		}
		plan.Pods[group.Spec.Name] = pods
	}

	return plan, nil
}

// Apply hands the plan's objects to the backend through Applier, merging
// cleanup specs from the previously applied generation (if any) so a
// scheduler-type switch still reclaims the old CRDs (§4.5 "Cleanup
// specs").
func Apply(ctx context.Context, applier Applier, plan *Plan, priorCleanup []CleanupSpec) error {
	cleanup := MergeCleanupSpecs(priorCleanup, plan.Cleanup)
	return applier.ApplyCleanupSpecs(ctx, cleanup, plan.objects())
}
