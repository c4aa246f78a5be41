// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"fmt"

	"github.com/osmo-project/osmo/internal/model"
)

// Pod label keys every emitted pod carries (§4.5 "Pod labeling").
const (
	LabelPool         = "osmo.pool"
	LabelPriority     = "osmo.priority"
	LabelTaskName     = "osmo.task_name"
	LabelTaskUUID     = "osmo.task_uuid"
	LabelGroupUUID    = "osmo.group_uuid"
	LabelWorkflowUUID = "osmo.workflow_uuid"
	LabelUser         = "osmo.user"

	// SubgroupLabel stamps a pod with the topology subgroup path it
	// belongs to (§4.5.1, step 6).
	SubgroupLabel = "kai.scheduler/subgroup-name"
)

// PodIdentity carries the per-task identifiers a pod's labels are built
// from.
type PodIdentity struct {
	Pool         string
	Priority     PriorityClass
	TaskName     string
	TaskUUID     string
	GroupUUID    string
	WorkflowUUID string
	User         string
}

// PodLabels builds the fixed §4.5 label set for one task's pod. queueLabel
// is the scheduler-specific queue label key (e.g. "kai.scheduler/queue");
// queueName is the value. subgroupPath is empty when the task's group
// carries no topology constraints.
func PodLabels(id PodIdentity, queueLabel, queueName, subgroupPath string) map[string]string {
	labels := map[string]string{
		LabelPool:         id.Pool,
		LabelTaskName:     id.TaskName,
		LabelTaskUUID:     id.TaskUUID,
		LabelGroupUUID:    id.GroupUUID,
		LabelWorkflowUUID: id.WorkflowUUID,
		LabelUser:         id.User,
	}
	if id.Priority != "" {
		labels[LabelPriority] = string(id.Priority)
	}
	if queueLabel != "" {
		labels[queueLabel] = queueName
	}
	if subgroupPath != "" {
		labels[SubgroupLabel] = subgroupPath
	}
	return labels
}

// PriorityClassFor maps a workflow priority to its scheduler priority
// class name (§4.5 "Priority classes").
func PriorityClassFor(priority model.Priority) PriorityClass {
	switch priority {
	case model.PriorityHigh:
		return PriorityClassHigh
	case model.PriorityLow:
		return PriorityClassLow
	default:
		return PriorityClassNormal
	}
}

// QueueName derives the per-pool queue name `osmo-pool-{namespace}-{pool}`
// (§4.5 "PodGroup composition").
func QueueName(namespace, pool string) string {
	return fmt.Sprintf("osmo-pool-%s-%s", namespace, pool)
}

// ParentQueueName derives the once-per-backend parent queue name
// `osmo-default-{namespace}` (§4.5 "Per-backend CRDs").
func ParentQueueName(namespace string) string {
	return fmt.Sprintf("osmo-default-%s", namespace)
}

// TopologyName derives the per-pool Topology object name
// `osmo-pool-{namespace}-{pool}-topology` (§4.5 "Topology CRDs").
func TopologyName(namespace, pool string) string {
	return fmt.Sprintf("osmo-pool-%s-%s-topology", namespace, pool)
}
