// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/osmo-project/osmo/internal/backend"
	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/quota"
	"github.com/osmo-project/osmo/internal/store"
)

// aliveTask reports whether status is one the Pool Quota Engine counts as
// currently consuming GPU (§4.7: running plus the pre-running states that
// have already reserved a node).
func aliveTask(status model.TaskStatus) bool {
	return status == model.TaskRunning || status.PreRunning()
}

// Quota runs §6's `pool quota [--pools …] [--all-pools]`: it gathers every
// named pool's policy object, every backend's current node report, and
// every currently alive task's GPU usage, then hands them to the Pool
// Quota Engine (§4.7).
func (e *Engine) Quota(ctx context.Context, poolNames []string, allPools bool) (map[string]quota.PoolUsage, quota.ResourceSum, error) {
	revisions, err := e.Config.List(model.ConfigPool)
	if err != nil {
		return nil, quota.ResourceSum{}, fmt.Errorf("list pools: %w", err)
	}

	want := make(map[string]bool, len(poolNames))
	for _, n := range poolNames {
		want[n] = true
	}

	pools := make(map[string]model.Pool, len(revisions))
	backends := map[string]bool{}
	for _, rev := range revisions {
		if !allPools && !want[rev.Name] {
			continue
		}
		var pool model.Pool
		if err := decodeConfig(rev.Data, &pool); err != nil {
			return nil, quota.ResourceSum{}, fmt.Errorf("decode pool %q: %w", rev.Name, err)
		}
		pool.Name = rev.Name
		pools[rev.Name] = pool
		backends[pool.Backend] = true
	}

	var nodes []quota.NodeResource
	for backendName := range backends {
		if e.BackendFor == nil {
			continue
		}
		be, err := e.BackendFor(backendName)
		if err != nil {
			return nil, quota.ResourceSum{}, fmt.Errorf("resolve backend %q: %w", backendName, err)
		}
		res, err := be.GetResources(ctx)
		if err != nil {
			return nil, quota.ResourceSum{}, fmt.Errorf("get_resources from backend %q: %w", backendName, err)
		}
		backendNodes := res.Nodes
		if cfg, cfgErr := e.backendConfigFor(backendName); cfgErr == nil && cfg.NodeConditionsPfx != "" {
			// Maintenance nodes stay out of total_capacity/total_free
			// even while the backend itself reports online (§4.8).
			backendNodes = backend.ExcludeMaintenance(backendNodes, cfg.NodeConditionsPfx)
		}
		for _, n := range backendNodes {
			nodes = append(nodes, quota.NodeResource{
				Backend:          backendName,
				Hostname:         n.Hostname,
				Allocatable:      n.Allocatable.GPU,
				WorkflowUsage:    n.WorkflowUsage.GPU,
				NonWorkflowUsage: n.NonWorkflowUsage.GPU,
				Pools:            n.Pools,
			})
		}
	}

	var tasks []quota.TaskSummary
	for poolName := range pools {
		workflows, err := e.Store.ListWorkflows(ctx, store.ListWorkflowsFilter{
			Pools:    []string{poolName},
			Statuses: aliveStatuses,
		})
		if err != nil {
			return nil, quota.ResourceSum{}, fmt.Errorf("list alive workflows for pool %q: %w", poolName, err)
		}
		for _, wf := range workflows {
			wfTasks, err := e.Store.TasksForWorkflow(ctx, wf.WorkflowUUID)
			if err != nil {
				return nil, quota.ResourceSum{}, fmt.Errorf("list tasks for workflow %q: %w", wf.ID(), err)
			}
			for _, t := range wfTasks {
				if !aliveTask(t.Status) {
					continue
				}
				tasks = append(tasks, quota.TaskSummary{User: wf.SubmittedBy, Pool: poolName, Priority: wf.Priority, GPU: t.Resources.GPU})
			}
		}
	}

	usage, sum := quota.Compute(pools, nodes, tasks, e.Logger)
	return usage, sum, nil
}
