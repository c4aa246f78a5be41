// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package quota implements the Pool Quota Engine (§4.7): per-pool GPU
// capacity/usage accounting that merges nodesets shared by overlapping
// pools so capacity is never double-counted across them.
package quota

import (
	"log/slog"
	"sort"

	"github.com/osmo-project/osmo/internal/model"
)

// NodeResource is one backend-reported node's GPU allocatable/usage
// figures (§4.7, step 1). Hostname is unique per Backend.
type NodeResource struct {
	Backend          string
	Hostname         string
	Allocatable      int64
	WorkflowUsage    int64
	NonWorkflowUsage int64
	// Pools lists every pool this node is assigned to (step 2); a node can
	// belong to more than one pool, which is exactly what makes nodeset
	// merging necessary.
	Pools []string
}

// TaskSummary aggregates GPU usage for one (user, pool, priority) over
// currently running tasks (§4.7 input).
type TaskSummary struct {
	User     string
	Pool     string
	Priority model.Priority
	GPU      int64
}

// PoolUsage is the computed per-pool quota report (§4.7, step 5).
type PoolUsage struct {
	Pool          string
	QuotaLimit    int64
	QuotaUsed     int64 // non-preemptible tasks only
	TotalUsage    int64 // all tasks, including preemptible
	QuotaFree     int64
	TotalCapacity int64 // shared across the nodeset this pool belongs to
	TotalFree     int64
}

// ResourceSum is the nodeset-deduplicated grand total (§4.7, step 6):
// summed over nodesets, never over pools.
type ResourceSum struct {
	TotalCapacity int64
	TotalFree     int64
}

// Compute runs the full algorithm: dedupe nodes, assign them to pools,
// merge nodesets by shared-node connectivity, and derive per-pool and
// aggregate usage.
func Compute(poolConfigs map[string]model.Pool, nodes []NodeResource, tasks []TaskSummary, logger *slog.Logger) (map[string]PoolUsage, ResourceSum) {
	nodes = dedupeNodes(nodes)

	poolToNodes := map[string][]int{}
	for i, n := range nodes {
		for _, pool := range n.Pools {
			if _, known := poolConfigs[pool]; !known {
				if logger != nil {
					logger.Warn("quota engine: node references unknown pool, skipping", "pool", pool, "hostname", n.Hostname)
				}
				continue
			}
			poolToNodes[pool] = append(poolToNodes[pool], i)
		}
	}

	nodesets := mergeNodesets(nodes, poolToNodes)

	usageByPool := aggregateTaskUsage(tasks)

	results := make(map[string]PoolUsage, len(poolConfigs))
	var resourceSum ResourceSum

	for _, ns := range nodesets {
		capacity, nsFree := ns.capacityAndFree(nodes)
		resourceSum.TotalCapacity += capacity
		resourceSum.TotalFree += nsFree

		for pool := range ns.pools {
			cfg, known := poolConfigs[pool]
			if !known {
				continue
			}
			limit := cfg.GPU.Guarantee
			if limit < 0 {
				limit = capacity
			}
			used := usageByPool[pool].nonPreemptible
			total := usageByPool[pool].all
			free := limit - used
			if free < 0 {
				free = 0
			}

			results[pool] = PoolUsage{
				Pool:          pool,
				QuotaLimit:    limit,
				QuotaUsed:     used,
				TotalUsage:    total,
				QuotaFree:     free,
				TotalCapacity: capacity,
				TotalFree:     nsFree,
			}
		}
	}

	// Pools with no assigned nodes at all still get a zero-capacity entry
	// so callers see every configured pool.
	for name := range poolConfigs {
		if _, ok := results[name]; !ok {
			used := usageByPool[name].nonPreemptible
			results[name] = PoolUsage{Pool: name, QuotaLimit: poolConfigs[name].GPU.Guarantee, QuotaUsed: used, TotalUsage: usageByPool[name].all}
		}
	}

	return results, resourceSum
}

type poolTaskUsage struct {
	nonPreemptible int64
	all            int64
}

func aggregateTaskUsage(tasks []TaskSummary) map[string]poolTaskUsage {
	out := map[string]poolTaskUsage{}
	for _, t := range tasks {
		u := out[t.Pool]
		u.all += t.GPU
		if !t.Priority.Preemptible() {
			u.nonPreemptible += t.GPU
		}
		out[t.Pool] = u
	}
	return out
}

// dedupeNodes collapses duplicate entries for the same (backend, hostname)
// (§4.7, step 1), keeping the first occurrence.
func dedupeNodes(nodes []NodeResource) []NodeResource {
	seen := map[[2]string]bool{}
	out := make([]NodeResource, 0, len(nodes))
	for _, n := range nodes {
		key := [2]string{n.Backend, n.Hostname}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

// nodeset is a connected component of pools that share at least one node
// (§4.7, step 3): computed via BFS over the bipartite pool<->node graph.
type nodeset struct {
	pools     map[string]bool
	nodeIdxes map[int]bool
}

func (ns nodeset) capacityAndFree(nodes []NodeResource) (capacity, free int64) {
	for idx := range ns.nodeIdxes {
		n := nodes[idx]
		capacity += n.Allocatable
		used := n.WorkflowUsage + n.NonWorkflowUsage
		f := n.Allocatable - used
		if f < 0 {
			f = 0
		}
		free += f
	}
	return capacity, free
}

// mergeNodesets computes connected components over the bipartite graph of
// pools and nodes via BFS (§4.7, step 3), so that capacity/free reported
// to every pool in a nodeset is computed once from the union of its nodes.
func mergeNodesets(nodes []NodeResource, poolToNodes map[string][]int) []nodeset {
	visitedPools := map[string]bool{}
	var result []nodeset

	poolNames := make([]string, 0, len(poolToNodes))
	for p := range poolToNodes {
		poolNames = append(poolNames, p)
	}
	sort.Strings(poolNames)

	for _, start := range poolNames {
		if visitedPools[start] {
			continue
		}

		ns := nodeset{pools: map[string]bool{}, nodeIdxes: map[int]bool{}}
		queue := []string{start}
		visitedPools[start] = true

		for len(queue) > 0 {
			pool := queue[0]
			queue = queue[1:]
			ns.pools[pool] = true

			for _, idx := range poolToNodes[pool] {
				if ns.nodeIdxes[idx] {
					continue
				}
				ns.nodeIdxes[idx] = true
				for _, neighborPool := range nodes[idx].Pools {
					if !visitedPools[neighborPool] {
						visitedPools[neighborPool] = true
						queue = append(queue, neighborPool)
					}
				}
			}
		}

		result = append(result, ns)
	}

	return result
}
