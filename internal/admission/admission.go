// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"context"
	"fmt"

	"github.com/osmo-project/osmo/internal/compiler"
	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/render"
)

// Mode controls how much of Admit's work actually runs. The distilled
// spec named two overlapping flags for this ("validate only" and "dry
// run"); they collapse into one ordered enum here (see DESIGN.md).
// Full ⊃ DryRun ⊃ ValidationOnly: each wider mode does everything the
// narrower one does, plus more.
type Mode int

const (
	// ValidationOnly runs static-assertion, pod-security, registry and
	// data-credential checks but performs no node selection and no user
	// quota check.
	ValidationOnly Mode = iota
	// DryRun additionally selects a candidate node per task (so the
	// caller learns which node would have been used) without checking
	// user quota.
	DryRun
	// Full performs every check, selects nodes, and enforces user quota
	// (CheckUserQuota); it does not reserve anything.
	Full
)

// PlatformNodes supplies the candidate nodes eligible for a given
// platform, used for per-node assertion evaluation.
type PlatformNodes func(platform string) ([]NodeCandidate, error)

// Options bundles every collaborator Admit needs beyond the compiled
// workflow itself.
type Options struct {
	Mode Mode

	Engine        *render.Engine
	StaticCache   *StaticAssertionCache
	SecurityCache *PodSecurityCache

	Pool     model.Pool
	Platform func(name string) (model.Platform, bool)
	Nodes    PlatformNodes
	// ResolveAssertions dereferences the named resource_validation config
	// entries a Pool/Platform lists (Pool.CommonResourceValidations,
	// Platform.ResourceValidations) into their Assertion rules.
	ResolveAssertions func(names []string) ([]model.Assertion, error)

	Registry         *RegistryValidator
	CredentialLookup CredentialLookup
	InputBackendFor  func(uri string) (DataBackend, bool)
	User             string
	UserLimits       UserWorkflowLimits
	UserLoad         UserLoad
}

// TaskAdmission is the per-task result of a successful admission: the
// node it was assigned (DryRun/Full only) and the digest-pinned image.
type TaskAdmission struct {
	TaskName    string
	Node        string
	PinnedImage string
}

// Result is the outcome of admitting a whole compiled workflow.
type Result struct {
	Tasks []TaskAdmission
}

// Admit runs the Admission & Validator pipeline (§4.4) against a compiled
// workflow. It returns a *UserError (checkable with IsUserError) for any
// rejection caused by the submission itself, or a wrapped error for
// infrastructure failures (registry unreachable, lookup failed, ...).
func Admit(ctx context.Context, wf *compiler.CompiledWorkflow, opts Options) (*Result, error) {
	if opts.Mode >= Full {
		totalTasks := 0
		for _, g := range wf.Groups {
			totalTasks += len(g.Tasks)
		}
		if err := CheckUserQuota(opts.UserLimits, opts.UserLoad, totalTasks); err != nil {
			return nil, err
		}
	}

	result := &Result{}
	for _, g := range wf.Groups {
		for _, t := range g.Tasks {
			admitted, err := admitTask(ctx, t, opts)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", t.Spec.Name, err)
			}
			result.Tasks = append(result.Tasks, admitted)
		}
	}
	return result, nil
}

func admitTask(ctx context.Context, task compiler.CompiledTask, opts Options) (TaskAdmission, error) {
	platformName := task.ResourceSpec.Platform
	if platformName == "" {
		platformName = opts.Pool.DefaultPlatform
	}
	platform, ok := opts.Platform(platformName)
	if !ok {
		return TaskAdmission{}, userErrorf("task %q resolves to an unknown platform %q", task.Spec.Name, platformName)
	}

	var assertions []model.Assertion
	if opts.ResolveAssertions != nil {
		names := append(append([]string{}, opts.Pool.CommonResourceValidations...), platform.ResourceValidations...)
		resolved, err := opts.ResolveAssertions(names)
		if err != nil {
			return TaskAdmission{}, fmt.Errorf("resolve resource assertions: %w", err)
		}
		assertions = resolved
	}
	static, perNode := SplitAssertions(assertions)

	userTokens := compiler.BuildUserTokens(task.ResourceSpec)
	if opts.StaticCache != nil {
		if err := opts.StaticCache.Check(task.ResourceSpec, static); err != nil {
			return TaskAdmission{}, err
		}
	}

	secKey := NewPodSecurityKey(task.Spec, platformName)
	if opts.SecurityCache != nil {
		if err := opts.SecurityCache.Check(secKey, func() error {
			return checkPodSecurity(task.Spec, platform)
		}); err != nil {
			return TaskAdmission{}, err
		}
	}

	admitted := TaskAdmission{TaskName: task.Spec.Name}

	if opts.Mode >= DryRun && opts.Nodes != nil && len(perNode) > 0 {
		candidates, err := opts.Nodes(platformName)
		if err != nil {
			return TaskAdmission{}, fmt.Errorf("list candidate nodes for platform %q: %w", platformName, err)
		}
		node, failures, err := CheckPerNode(opts.Engine, userTokens, candidates, perNode)
		if err != nil {
			return TaskAdmission{}, err
		}
		if node == "" {
			return TaskAdmission{}, userErrorf("no candidate node passed per-node assertions for task %q: %v", task.Spec.Name, failures)
		}
		admitted.Node = node
	}

	if opts.Registry != nil && task.Spec.Image != "" {
		var cred *RegistryCredential
		if opts.CredentialLookup != nil {
			creds, err := opts.CredentialLookup.CredentialsFor(opts.User)
			if err != nil {
				return TaskAdmission{}, fmt.Errorf("look up registry credentials: %w", err)
			}
			ref, parseErr := ParseImageRef(task.Spec.Image)
			if parseErr == nil {
				cred, _ = RegistryCredentialFor(creds, ref.Host)
			}
		}
		pinned, err := opts.Registry.Validate(ctx, task.Spec.Image, cred)
		if err != nil {
			return TaskAdmission{}, fmt.Errorf("validate image %q: %w", task.Spec.Image, err)
		}
		admitted.PinnedImage = pinned
	}

	if opts.CredentialLookup != nil && opts.InputBackendFor != nil {
		for _, in := range task.Spec.Inputs {
			if in.URL == "" {
				continue
			}
			backend, ok := opts.InputBackendFor(in.URL)
			if !ok {
				continue
			}
			if err := CheckDataAccess(opts.CredentialLookup, opts.User, in.URL, backend, AccessRead); err != nil {
				return TaskAdmission{}, err
			}
		}
		for _, out := range task.Spec.Outputs {
			backend, ok := opts.InputBackendFor(out)
			if !ok {
				continue
			}
			if err := CheckDataAccess(opts.CredentialLookup, opts.User, out, backend, AccessWrite); err != nil {
				return TaskAdmission{}, err
			}
		}
	}

	return admitted, nil
}

// checkPodSecurity rejects privileged/hostNetwork/volume-mount usage the
// resolved platform does not allow.
func checkPodSecurity(task model.TaskSpec, platform model.Platform) error {
	if task.Privileged && !platform.AllowPrivileged {
		return userErrorf("task %q requests privileged but platform %q does not allow it", task.Name, platform.Name)
	}
	if task.HostNetwork && !platform.AllowHostNetwork {
		return userErrorf("task %q requests hostNetwork but platform %q does not allow it", task.Name, platform.Name)
	}
	for _, mount := range task.VolumeMounts {
		if !platformAllowsMount(platform, mount) {
			return userErrorf("task %q requests volume mount %q not allowed by platform %q", task.Name, mount, platform.Name)
		}
	}
	return nil
}

func platformAllowsMount(platform model.Platform, mount string) bool {
	for _, v := range platform.AllowedVolumeMounts {
		if v == mount {
			return true
		}
	}
	return false
}
