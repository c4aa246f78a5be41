// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/osmo-project/osmo/internal/model"
)

// unlimitedQuota is the no-op quota used for cpu/memory (always unlimited,
// §4.5 "Per-backend CRDs") and for a GPU guarantee/maximum of -1.
var unlimitedQuota = ResourceQuota{Unlimited: true}

// gpuQuota converts a Pool's GPUQuota into the Queue CRD's quota shape. A
// Guarantee or Maximum of -1 maps to an unlimited no-op for that field;
// Unlimited is set only when both are -1, so the quota carries no bound
// at all.
func gpuQuota(q model.GPUQuota) ResourceQuota {
	rq := ResourceQuota{OverQuotaWeight: q.Weight}
	if q.Guarantee < 0 && q.Maximum < 0 {
		rq.Unlimited = true
		return rq
	}
	if q.Guarantee >= 0 {
		rq.Quota = *resource.NewQuantity(q.Guarantee, resource.DecimalSI)
	}
	if q.Maximum >= 0 {
		rq.Limit = *resource.NewQuantity(q.Maximum, resource.DecimalSI)
	}
	return rq
}

// BuildQueue emits the per-pool Queue CRD (§4.5 "Per-backend CRDs").
// namespace is the backend's Kubernetes namespace.
func BuildQueue(namespace string, pool model.Pool) Queue {
	return Queue{
		TypeMeta: metav1.TypeMeta{Kind: "Queue"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      QueueName(namespace, pool.Name),
			Namespace: namespace,
		},
		ParentQueue: ParentQueueName(namespace),
		GPU:         gpuQuota(pool.GPU),
		CPU:         unlimitedQuota,
		Memory:      unlimitedQuota,
	}
}

// BuildParentQueue emits the once-per-backend parent queue
// `osmo-default-{namespace}`, entirely unlimited.
func BuildParentQueue(namespace string) Queue {
	return Queue{
		TypeMeta:    metav1.TypeMeta{Kind: "Queue"},
		ObjectMeta:  metav1.ObjectMeta{Name: ParentQueueName(namespace), Namespace: namespace},
		ParentQueue: "",
		GPU:         unlimitedQuota,
		CPU:         unlimitedQuota,
		Memory:      unlimitedQuota,
	}
}

// BuildTopologyCRD emits the per-pool Topology CRD when pool carries
// topology_keys, or nil otherwise (§4.5 "Topology CRDs").
func BuildTopologyCRD(namespace string, pool model.Pool) *Topology {
	if len(pool.TopologyKeys) == 0 {
		return nil
	}
	levels := make([]TopologyLevel, len(pool.TopologyKeys))
	for i, k := range pool.TopologyKeys {
		levels[i] = TopologyLevel{NodeLabel: k.Label}
	}
	return &Topology{
		TypeMeta:   metav1.TypeMeta{Kind: "Topology"},
		ObjectMeta: metav1.ObjectMeta{Name: TopologyName(namespace, pool.Name), Namespace: namespace},
		Levels:     levels,
	}
}
