// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package compiler implements the Workflow Compiler (§4.3): it takes a
// rendered workflow document plus a SubmissionContext and produces a fully
// resolved CompiledWorkflow — every task's pod spec built, timeouts filled
// in, names validated, and the group DAG checked for reachability.
package compiler

import (
	"fmt"
	"time"

	"github.com/osmo-project/osmo/internal/model"
)

// CompiledTask is one task with its resolved pod spec ready for the
// Scheduler Bridge.
type CompiledTask struct {
	Spec         model.TaskSpec
	ResourceSpec model.ResourceSpec
	Pod          map[string]any
}

// CompiledGroup is one group with its tasks resolved.
type CompiledGroup struct {
	Spec  model.GroupSpec
	Tasks []CompiledTask
}

// CompiledWorkflow is the Workflow Compiler's output (§4.3).
type CompiledWorkflow struct {
	Name         string
	Groups       []CompiledGroup
	ExecTimeout  time.Duration
	QueueTimeout time.Duration
}

// CrossWorkflowResolver looks up a task in a previously submitted workflow,
// used to validate `{prev_workflow_id}:{task_name}` input references
// (§4.3 step 4). ok is false if the task does not exist.
type CrossWorkflowResolver func(workflowID, taskName string) (task model.Task, ok bool, err error)

// Limits bounds a compile (§4.3 steps 6-7): per-pool and service-wide
// timeout defaults/maxima, and the maximum task count.
type Limits struct {
	PoolMaxExecTimeout      time.Duration
	PoolDefaultExecTimeout  time.Duration
	PoolMaxQueueTimeout     time.Duration
	PoolDefaultQueueTimeout time.Duration
	ServiceMaxExecTimeout   time.Duration
	ServiceMaxQueueTimeout  time.Duration
	MaxNumTasks             int
}

// Options bundles everything a Compile call needs beyond the rendered
// document itself: the context of who is submitting and against what pool
// policy, plus the collaborators needed to resolve resources and
// cross-workflow references.
type Options struct {
	Context   model.SubmissionContext
	Pool      model.Pool
	Limits    Limits
	Resolver  CrossWorkflowResolver
	Templates PodTemplates
}

// Compile runs the full pipeline (§4.3): parse, normalize, validate names,
// validate the DAG, resolve resources into pod specs, fill timeouts, and
// enforce the task-count limit.
func Compile(renderedYAML string, opts Options) (*CompiledWorkflow, error) {
	spec, err := Parse(renderedYAML)
	if err != nil {
		return nil, err
	}

	Normalize(&spec)

	if err := ValidateNames(spec.Groups); err != nil {
		return nil, err
	}

	if err := ValidateDAG(spec.Groups, opts.Resolver); err != nil {
		return nil, err
	}

	totalTasks := 0
	for _, g := range spec.Groups {
		totalTasks += len(g.Tasks)
	}
	if opts.Limits.MaxNumTasks > 0 && totalTasks > opts.Limits.MaxNumTasks {
		return nil, userErrorf("workflow has %d tasks, exceeding max_num_tasks=%d", totalTasks, opts.Limits.MaxNumTasks)
	}

	execTimeout, queueTimeout := ResolveTimeouts(spec.Timeout, opts.Limits)

	compiledGroups := make([]CompiledGroup, 0, len(spec.Groups))
	for _, g := range spec.Groups {
		cg := CompiledGroup{Spec: g, Tasks: make([]CompiledTask, 0, len(g.Tasks))}
		for _, t := range g.Tasks {
			resourceName := t.Resources
			if resourceName == "" {
				resourceName = "default"
			}
			resourceSpec, ok := spec.Resources[resourceName]
			if !ok {
				return nil, userErrorf("task %q references unknown resources %q", t.Name, resourceName)
			}

			platformName := resourceSpec.Platform
			if platformName == "" {
				platformName = opts.Pool.DefaultPlatform
			}
			platform, ok := opts.Pool.Platforms[platformName]
			if !ok {
				return nil, userErrorf("task %q resolves to unknown platform %q", t.Name, platformName)
			}

			pod, err := ResolvePod(t, resourceSpec, opts.Pool, platform, opts.Templates)
			if err != nil {
				return nil, fmt.Errorf("resolve pod for task %q: %w", t.Name, err)
			}
			cg.Tasks = append(cg.Tasks, CompiledTask{Spec: t, ResourceSpec: resourceSpec, Pod: pod})
		}
		compiledGroups = append(compiledGroups, cg)
	}

	return &CompiledWorkflow{
		Name:         spec.Name,
		Groups:       compiledGroups,
		ExecTimeout:  execTimeout,
		QueueTimeout: queueTimeout,
	}, nil
}
