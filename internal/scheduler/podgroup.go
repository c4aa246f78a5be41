// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/osmo-project/osmo/internal/compiler"
	"github.com/osmo-project/osmo/internal/model"
)

// GroupIdentity carries the identifiers a PodGroup and its pods' labels
// are built from.
type GroupIdentity struct {
	Namespace    string
	Pool         string
	GroupUUID    string
	WorkflowUUID string
	User         string
	Priority     model.Priority
	// TaskUUIDs maps each task name in the group to its assigned UUID.
	TaskUUIDs map[string]string
	// SchedulerName is set on every pod (§4.5 "PodGroup composition").
	SchedulerName string
	// QueueLabel is the scheduler's own queue label key (e.g.
	// "kai.scheduler/queue"); empty if the target scheduler has none.
	QueueLabel string
	// SupportsPriority gates whether priority annotations/class are
	// attached at all (§4.5 "Priority classes").
	SupportsPriority bool
}

// BuiltPodGroup is the Scheduler Bridge's output for one compiled group:
// the PodGroup object itself, and the per-task pod label sets to merge
// into each CompiledTask's pod.
type BuiltPodGroup struct {
	PodGroup  PodGroup
	PodLabels map[string]map[string]string // task name -> labels
}

// BuildPodGroup composes the PodGroup object for one compiled group,
// running the §4.5.1 topology algorithm and labeling every task's pod
// (§4.5 "Pod labeling", "PodGroup composition").
func BuildPodGroup(group compiler.CompiledGroup, pool model.Pool, id GroupIdentity) (*BuiltPodGroup, error) {
	tasks := make([]model.TaskSpec, len(group.Tasks))
	for i, t := range group.Tasks {
		tasks[i] = t.Spec
	}

	topo, err := BuildTopology(pool.TopologyKeys, tasks)
	if err != nil {
		return nil, err
	}

	queueName := QueueName(id.Namespace, id.Pool)

	pg := PodGroup{
		TypeMeta: metav1.TypeMeta{Kind: "PodGroup"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      id.GroupUUID,
			Namespace: id.Namespace,
			Labels: map[string]string{
				LabelPool:         id.Pool,
				LabelGroupUUID:    id.GroupUUID,
				LabelWorkflowUUID: id.WorkflowUUID,
			},
		},
		MinMember:          len(group.Tasks),
		Queue:              queueName,
		SchedulerName:      id.SchedulerName,
		TopologyConstraint: topo.TopLevel,
		Subgroups:          topo.Subgroups,
	}
	if id.SupportsPriority {
		pg.PriorityClass = PriorityClassFor(id.Priority)
		pg.Labels[LabelPriority] = string(pg.PriorityClass)
	}

	labels := make(map[string]map[string]string, len(group.Tasks))
	for _, t := range group.Tasks {
		priority := PriorityClass("")
		if id.SupportsPriority {
			priority = PriorityClassFor(id.Priority)
		}
		identity := PodIdentity{
			Pool:         id.Pool,
			Priority:     priority,
			TaskName:     t.Spec.Name,
			TaskUUID:     id.TaskUUIDs[t.Spec.Name],
			GroupUUID:    id.GroupUUID,
			WorkflowUUID: id.WorkflowUUID,
			User:         id.User,
		}
		labels[t.Spec.Name] = PodLabels(identity, id.QueueLabel, queueName, topo.TaskSubgroup[t.Spec.Name])
	}

	return &BuiltPodGroup{PodGroup: pg, PodLabels: labels}, nil
}

// ApplyPodMeta merges the given labels and scheduler name into a
// compiled task's pod-spec map, producing the full object the backend
// applies: `{metadata: {labels}, schedulerName, ...podSpec}`.
func ApplyPodMeta(pod map[string]any, labels map[string]string, schedulerName string) map[string]any {
	out := make(map[string]any, len(pod)+2)
	for k, v := range pod {
		out[k] = v
	}
	meta, _ := out["metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["labels"] = labels
	out["metadata"] = meta
	if schedulerName != "" {
		out["schedulerName"] = schedulerName
	}
	return out
}
