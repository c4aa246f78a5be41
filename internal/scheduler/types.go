// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler implements the Scheduler Bridge (§4.5): it converts a
// compiled workflow and the current pool table into scheduler-native
// objects (PodGroup, Queue, Topology) and the pod labels/scheduler-name
// every emitted pod carries, then hands the result to a backend for
// application. It owns no reconciliation loop of its own — it is a
// one-shot translation from OSMO's domain model into the target
// scheduler's CRD shapes, applied through the Backend Interface (§4.8).
package scheduler

import (
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PriorityClass names one of the three scheduling priorities (§4.5). Only
// PriorityLow is preemptible.
type PriorityClass string

const (
	PriorityClassHigh   PriorityClass = "osmo-high"
	PriorityClassNormal PriorityClass = "osmo-normal"
	PriorityClassLow    PriorityClass = "osmo-low"
)

// Preemptible reports whether pods carrying this priority class may be
// evicted to make room for higher-priority work.
func (p PriorityClass) Preemptible() bool { return p == PriorityClassLow }

// TopologyConstraint pins a PodGroup or Subgroup to a shared affinity
// identifier at one topology level, with the level named as either
// required or preferred (§4.5.1, step 7).
type TopologyConstraint struct {
	Topology               string `json:"topology"`
	RequiredTopologyLevel  string `json:"requiredTopologyLevel,omitempty"`
	PreferredTopologyLevel string `json:"preferredTopologyLevel,omitempty"`
}

// Subgroup is one internal or leaf node of the topology tree promoted
// into its own scheduler object (§4.5.1, step 6). Parent is empty for a
// subgroup hung directly off the PodGroup's top-level constraint.
type Subgroup struct {
	Name               string             `json:"name"`
	MinMember          int                `json:"minMember"`
	TopologyConstraint TopologyConstraint `json:"topologyConstraint"`
	Parent             string             `json:"parent,omitempty"`
}

// PodGroup is the scheduler-native gang-scheduling object built for one
// task group (§4.5 "PodGroup composition").
type PodGroup struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	MinMember          int                 `json:"minMember"`
	Queue              string              `json:"queue"`
	SchedulerName      string              `json:"schedulerName"`
	PriorityClass      PriorityClass       `json:"priorityClass,omitempty"`
	TopologyConstraint *TopologyConstraint `json:"topologyConstraint,omitempty"`
	Subgroups          []Subgroup          `json:"subgroups,omitempty"`
}

// Queue is the per-pool scheduler queue object (§4.5 "Per-backend CRDs").
// GPU is quota-bearing; CPU/Memory are always unlimited no-ops per spec.
type Queue struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	ParentQueue string        `json:"parentQueue"`
	GPU         ResourceQuota `json:"gpu"`
	CPU         ResourceQuota `json:"cpu"`
	Memory      ResourceQuota `json:"memory"`
}

// ResourceQuota mirrors a scheduler queue's per-resource quota/limit/weight
// triple. Unlimited is true (and no quantity is set) only when both the
// quota and the limit are -1; a single -1 leaves just that quantity unset.
type ResourceQuota struct {
	Unlimited       bool              `json:"unlimited,omitempty"`
	Quota           resource.Quantity `json:"quota,omitempty"`
	Limit           resource.Quantity `json:"limit,omitempty"`
	OverQuotaWeight float64           `json:"overQuotaWeight,omitempty"`
}

// TopologyLevel names one rung of a Topology's node-label ladder, ordered
// coarsest to finest.
type TopologyLevel struct {
	NodeLabel string `json:"nodeLabel"`
}

// Topology is the per-pool node-label ladder object emitted when a Pool
// carries topology_keys (§4.5 "Topology CRDs").
type Topology struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Levels []TopologyLevel `json:"levels"`
}
