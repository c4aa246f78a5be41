// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend implements the Backend Interface (§4.8): the contract
// the Scheduler Bridge and State Machine use to talk to a cluster/scheduler
// endpoint — apply/cleanup CRDs, a pod/node event stream, node resource
// enumeration, and the exec/port-forward/rsync/webserver/cancel action
// channel. A concrete Client wraps a caller-supplied Transport (the actual
// Kubernetes API access is out of this package's scope, same as the
// Scheduler Bridge only ever builds CRD-shaped values rather than
// reconciling them) with a circuit breaker and retry policy.
package backend

import "time"

// PodPhase mirrors the handful of phases the State Machine cares about
// out of a backend's raw pod status.
type PodPhase string

const (
	PodPending   PodPhase = "Pending"
	PodRunning   PodPhase = "Running"
	PodSucceeded PodPhase = "Succeeded"
	PodFailed    PodPhase = "Failed"
	PodUnknown   PodPhase = "Unknown"
)

// NodeCondition is one backend-reported node condition relevant to
// scheduling (e.g. Ready, or a maintenance taint's condition).
type NodeCondition struct {
	Type   string
	Status string
}

// PodEvent is one item of the `listen_events` stream (§4.8): the current
// phase/conditions/heartbeat for a single object carrying `osmo.*` labels.
// TaskUUID/GroupUUID/WorkflowUUID are read back from those labels.
type PodEvent struct {
	WorkflowUUID string
	GroupUUID    string
	TaskUUID     string
	NodeName     string
	Phase        PodPhase
	Conditions   []NodeCondition
	Heartbeat    time.Time
}

// Node is one backend-reported node (§4.8 `get_resources`): labels,
// taints, allocatable/usage figures split by workflow vs. non-workflow
// consumption, and the platform/pool assignment derived from its labels.
type Node struct {
	Hostname    string
	Labels      map[string]string
	Taints      []NodeCondition
	Allocatable ResourceFigures
	// WorkflowUsage/NonWorkflowUsage split current consumption the way
	// §4.7's quota engine needs it (workflow-managed pods vs. everything
	// else scheduled on the node).
	WorkflowUsage    ResourceFigures
	NonWorkflowUsage ResourceFigures
	Platforms        []string // platform names this node satisfies
	Pools            []string // pools whose platforms include this node
}

// ResourceFigures is the set of quantities get_resources reports per node,
// matching the resource kinds a ResourceSpec can request.
type ResourceFigures struct {
	CPU     float64
	Memory  int64 // bytes
	Storage int64 // bytes
	GPU     int64
}

// GetResourcesResult is the full `get_resources()` response (§4.8).
type GetResourcesResult struct {
	Nodes []Node
}

// ActionKind is one of the action_channel request kinds (§4.8).
type ActionKind string

const (
	ActionExec        ActionKind = "exec"
	ActionPortForward ActionKind = "port-forward"
	ActionRsync       ActionKind = "rsync"
	ActionWebserver   ActionKind = "webserver"
	ActionCancel      ActionKind = "cancel"
)

// ActionRequest is one action_channel publish (§4.8): `{action, key,
// router_address, cookie, payload}`, keyed by the task the action targets.
// TTL is the request's total timeout, after which a stale, unclaimed
// request must not be delivered.
type ActionRequest struct {
	TaskUUID      string
	Action        ActionKind
	Key           string
	RouterAddress string
	Cookie        string
	Payload       []byte
	TTL           time.Duration
}
