// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/osmo-project/osmo/internal/admission"
	"github.com/osmo-project/osmo/internal/compiler"
	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/render"
	"github.com/osmo-project/osmo/internal/scheduler"
	"github.com/osmo-project/osmo/internal/store"
)

// SubmitRequest is everything `workflow submit` (§6) supplies: the raw
// (possibly templated) spec document, the --set/--set-string overrides,
// and the request-scoped facts that normally come from an authenticated
// caller.
type SubmitRequest struct {
	RawSpec         string
	SetValues       map[string]any
	SetStringValues map[string]string
	User            string
	Pool            string // overrides the spec's own `pool:` field when non-empty
	Priority        model.Priority
	ValidationOnly  bool
	DryRun          bool
	ParentName      string
	ParentJobID     int64
}

// SubmitResult is what Submit returns. CompiledWorkflow and Admission are
// populated in every mode so a caller can inspect what would run / did
// run; Workflow is set only in Full mode, once the workflow is persisted.
type SubmitResult struct {
	Workflow         *model.Workflow
	CompiledWorkflow *compiler.CompiledWorkflow
	Admission        *admission.Result
}

// topLevelDefaults extracts a workflow document's own top-level
// `default-values` block (§6: "merged under --set") without a full
// render pass, since the document's CEL expressions may themselves
// reference those defaults.
func topLevelDefaults(rawSpec string) (map[string]any, error) {
	var doc struct {
		DefaultValues map[string]any `yaml:"default-values"`
	}
	if err := yaml.Unmarshal([]byte(rawSpec), &doc); err != nil {
		return nil, nil //nolint:nilerr // malformed documents fail later, at Compile's own Parse step, with a proper UserError
	}
	return doc.DefaultValues, nil
}

// Submit runs the full pipeline (§4.2-§4.6): render, compile, admit, and
// — for Full mode — persist the workflow/groups/tasks and hand the plan
// to the Scheduler Bridge.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	defaults, err := topLevelDefaults(req.RawSpec)
	if err != nil {
		return nil, err
	}
	explicit := render.MergeDefaults(toAnyMap(req.SetStringValues), req.SetValues)
	variables := render.MergeDefaults(defaults, explicit)

	rendered, err := e.Renderer.Render(ctx, req.RawSpec, variables)
	if err != nil {
		return nil, fmt.Errorf("render workflow spec: %w", err)
	}

	parsedPool := req.Pool
	if parsedPool == "" {
		var probe struct {
			Pool string `yaml:"pool"`
		}
		_ = yaml.Unmarshal([]byte(rendered), &probe)
		parsedPool = probe.Pool
	}
	pool, err := e.poolFor(ctx, parsedPool)
	if err != nil {
		return nil, fmt.Errorf("resolve pool %q: %w", parsedPool, err)
	}
	if err := e.Authorize(req.User, pool.Name, "workflow:submit"); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}

	opts := compiler.Options{
		Context: model.SubmissionContext{
			User:           req.User,
			Pool:           pool.Name,
			Priority:       priority,
			ParentName:     req.ParentName,
			ParentJobID:    req.ParentJobID,
			DefaultValues:  defaults,
			ExplicitValues: explicit,
		},
		Pool:      pool,
		Limits:    e.limitsFor(pool),
		Resolver:  e.crossWorkflowResolver,
		Templates: e.podTemplateFor,
	}

	compiled, err := compiler.Compile(rendered, opts)
	if err != nil {
		return nil, err
	}

	mode := admission.Full
	switch {
	case req.ValidationOnly:
		mode = admission.ValidationOnly
	case req.DryRun:
		mode = admission.DryRun
	}

	admissionOpts := e.Admission
	admissionOpts.Mode = mode
	admissionOpts.Pool = pool
	admissionOpts.User = req.User
	admissionOpts.Platform = platformFor(pool)
	admissionOpts.Nodes = e.nodesFor(pool.Backend)
	if admissionOpts.ResolveAssertions == nil {
		admissionOpts.ResolveAssertions = e.resolveAssertions
	}
	if mode >= admission.Full {
		load, err := e.userLoad(ctx, req.User)
		if err != nil {
			return nil, fmt.Errorf("load user quota usage: %w", err)
		}
		admissionOpts.UserLoad = load
	}

	admitted, err := admission.Admit(ctx, compiled, admissionOpts)
	if err != nil {
		return nil, err
	}

	if mode == admission.ValidationOnly {
		return &SubmitResult{CompiledWorkflow: compiled, Admission: admitted}, nil
	}
	if mode == admission.DryRun {
		return &SubmitResult{CompiledWorkflow: compiled, Admission: admitted}, nil
	}

	wf, err := e.persist(ctx, compiled, admitted, pool, req, priority)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Workflow: wf, CompiledWorkflow: compiled, Admission: admitted}, nil
}

// persist creates the workflow/group/task rows, builds the Scheduler
// Bridge plan, and applies it to the target backend (§4.5-§4.6).
func (e *Engine) persist(ctx context.Context, compiled *compiler.CompiledWorkflow, admitted *admission.Result, pool model.Pool, req SubmitRequest, priority model.Priority) (*model.Workflow, error) {
	wf := model.Workflow{
		WorkflowUUID: uuid.NewString(),
		Name:         compiled.Name,
		SubmittedBy:  req.User,
		Backend:      pool.Backend,
		Pool:         pool.Name,
		Priority:     priority,
		Status:       model.WorkflowPending,
		ExecTimeout:  compiled.ExecTimeout,
		QueueTimeout: compiled.QueueTimeout,
		ParentName:   req.ParentName,
		ParentJobID:  req.ParentJobID,
	}
	wf, err := e.Store.CreateWorkflow(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("persist workflow: %w", err)
	}

	// Persisted under the workflow's name (not its per-submission UUID) so
	// `workflow restart` (§9 feature supplement #1) can look it up later.
	// Restart reads the latest revision under the name, which is the spec
	// of the most recent submission of that name.
	if _, err := e.Config.Put(model.ConfigWorkflow, wf.Name, map[string]any{"spec": req.RawSpec}, req.User, "workflow submission", nil); err != nil {
		return nil, fmt.Errorf("persist submitted spec: %w", err)
	}

	groupUUIDs := make(map[string]string, len(compiled.Groups))
	taskUUIDs := make(map[string]map[string]string, len(compiled.Groups))
	admittedByTask := make(map[string]admission.TaskAdmission, len(admitted.Tasks))
	for _, a := range admitted.Tasks {
		admittedByTask[a.TaskName] = a
	}

	for _, group := range compiled.Groups {
		groupUUID := uuid.NewString()
		groupUUIDs[group.Spec.Name] = groupUUID
		upstream := map[string]struct{}{}
		for _, in := range group.Spec.Inputs {
			if in.Group != "" {
				upstream[in.Group] = struct{}{}
			}
		}
		if err := e.Store.CreateGroup(ctx, model.TaskGroup{
			GroupUUID:  groupUUID,
			WorkflowID: wf.WorkflowUUID,
			Name:       group.Spec.Name,
			Status:     model.GroupPending,
			Barrier:    group.Spec.Barrier,
			Upstream:   upstream,
			Downstream: map[string]struct{}{},
		}); err != nil {
			return nil, fmt.Errorf("persist group %q: %w", group.Spec.Name, err)
		}

		taskUUIDs[group.Spec.Name] = make(map[string]string, len(group.Tasks))
		for _, task := range group.Tasks {
			taskUUID := uuid.NewString()
			taskUUIDs[group.Spec.Name][task.Spec.Name] = taskUUID
			admittedTask := admittedByTask[task.Spec.Name]
			if err := e.Store.CreateTask(ctx, model.Task{
				TaskDBKey:   taskUUID,
				TaskUUID:    taskUUID,
				WorkflowID:  wf.WorkflowUUID,
				Name:        task.Spec.Name,
				RetryID:     0,
				GroupName:   group.Spec.Name,
				Status:      model.TaskWaiting,
				NodeName:    admittedTask.Node,
				ExitActions: task.Spec.ExitActions,
				Lead:        task.Spec.Lead,
			}); err != nil {
				return nil, fmt.Errorf("persist task %q: %w", task.Spec.Name, err)
			}
		}
	}

	applier, caps, err := e.ApplierFor(pool.Backend)
	if err != nil {
		return nil, fmt.Errorf("resolve backend %q: %w", pool.Backend, err)
	}
	plan, err := scheduler.Convert(compiled, pool, caps, wf.WorkflowUUID, req.User, priority, groupUUIDs, taskUUIDs)
	if err != nil {
		return nil, fmt.Errorf("build scheduler plan: %w", err)
	}
	if err := scheduler.Apply(ctx, applier, plan, nil); err != nil {
		return nil, fmt.Errorf("apply scheduler plan: %w", err)
	}

	return &wf, nil
}

func (e *Engine) limitsFor(pool model.Pool) compiler.Limits {
	return compiler.Limits{
		PoolMaxExecTimeout:      pool.MaxExecTimeout,
		PoolDefaultExecTimeout:  pool.DefaultExecTimeout,
		PoolMaxQueueTimeout:     pool.MaxQueueTimeout,
		PoolDefaultQueueTimeout: pool.DefaultQueueTimeout,
	}
}

// crossWorkflowResolver implements compiler.CrossWorkflowResolver against
// the durable store: `{prev_workflow_id}:{task_name}` input references
// (§4.3 step 4) resolve to a task of a previously submitted workflow.
func (e *Engine) crossWorkflowResolver(workflowID, taskName string) (model.Task, bool, error) {
	tasks, err := e.Store.TasksForWorkflow(context.Background(), workflowID)
	if err != nil {
		return model.Task{}, false, err
	}
	for _, t := range tasks {
		if t.Name == taskName {
			return t, true, nil
		}
	}
	return model.Task{}, false, nil
}

// userLoad counts req.User's currently alive workflows/tasks for
// admission.CheckUserQuota (§4.4 "User quotas").
func (e *Engine) userLoad(ctx context.Context, user string) (admission.UserLoad, error) {
	aliveStatuses := []model.WorkflowStatus{
		model.WorkflowWaiting, model.WorkflowPending, model.WorkflowRunning,
	}
	workflows, err := e.Store.ListWorkflows(ctx, store.ListWorkflowsFilter{Users: []string{user}, Statuses: aliveStatuses})
	if err != nil {
		return admission.UserLoad{}, err
	}
	load := admission.UserLoad{AliveWorkflows: len(workflows)}
	for _, wf := range workflows {
		tasks, err := e.Store.TasksForWorkflow(ctx, wf.WorkflowUUID)
		if err != nil {
			return admission.UserLoad{}, err
		}
		for _, t := range tasks {
			if !t.Status.Finished() {
				load.AliveTasks++
			}
		}
	}
	return load, nil
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
