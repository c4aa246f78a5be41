// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine wires every other package into the request-level
// operations named in spec.md §6 (workflow submit/list/cancel/restart,
// task list, pool quota): render the submitted document, compile it,
// admit it, persist it, hand it to the Scheduler Bridge, and advance the
// State Machine. cmd/osmoctl and cmd/osmo-server call this package
// directly — the HTTP/REST surface is out of scope (§1 Non-goals), so
// there is no transport between the CLI and this orchestration layer in
// this repository.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/osmo-project/osmo/internal/admission"
	"github.com/osmo-project/osmo/internal/apierror"
	"github.com/osmo-project/osmo/internal/authz"
	"github.com/osmo-project/osmo/internal/backend"
	"github.com/osmo-project/osmo/internal/configstore"
	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/render"
	"github.com/osmo-project/osmo/internal/scheduler"
	"github.com/osmo-project/osmo/internal/secrets"
	"github.com/osmo-project/osmo/internal/statemachine"
	"github.com/osmo-project/osmo/internal/store"
)

// ApplierFor resolves a pool's backend into the scheduler.Applier that
// applies its plan. Most deployments have one backend per pool; Engine
// takes a lookup function rather than a single Applier so multi-backend
// configurations (§4.8) are not precluded.
type ApplierFor func(backendName string) (scheduler.Applier, scheduler.BackendCapabilities, error)

// BackendFor resolves a backend name to the full Backend Interface
// (§4.8), used to list candidate nodes for per-node assertions.
type BackendFor func(backendName string) (backend.Backend, error)

// Engine bundles every collaborator a request-level operation needs.
// Every field is one of this repository's own packages; Engine itself
// contains no business logic beyond sequencing calls into them.
type Engine struct {
	Store      *store.Store
	Config     *configstore.Store
	KeyRing    *secrets.KeyRing
	Renderer   *render.Pool
	Machine    *statemachine.Machine
	ApplierFor ApplierFor
	BackendFor BackendFor
	Admission  admission.Options // shared collaborators; Mode/User/Pool/Platform set per call
	Authz      *authz.Enforcer   // nil disables enforcement (no Role grants configured yet)
	Logger     *slog.Logger
}

// New builds an Engine from its collaborators. base carries the
// operator-supplied admission collaborators (registry validator,
// assertion resolver, credential lookup, input-backend lookup, render
// engine, caches) that do not vary per request. authzEnforcer may be nil,
// in which case Authorize never denies (an operator who has not yet
// populated the Role config type gets the pre-authz behavior, not a
// locked-out fleet).
func New(st *store.Store, cfg *configstore.Store, keyRing *secrets.KeyRing, renderer *render.Pool, machine *statemachine.Machine, applierFor ApplierFor, backendFor BackendFor, base admission.Options, authzEnforcer *authz.Enforcer, logger *slog.Logger) *Engine {
	return &Engine{
		Store:      st,
		Config:     cfg,
		KeyRing:    keyRing,
		Renderer:   renderer,
		Machine:    machine,
		ApplierFor: applierFor,
		BackendFor: backendFor,
		Admission:  base,
		Authz:      authzEnforcer,
		Logger:     logger,
	}
}

// Authorize enforces the Role config type (§3) against one request-level
// action. It is the single seam every user-facing Engine operation
// (submit/cancel/restart, config mutation) calls through before it
// changes any state.
func (e *Engine) Authorize(subject, pool, action string) error {
	if e.Authz == nil {
		return nil
	}
	ok, err := e.Authz.Allowed(authz.Request{Subject: subject, Pool: pool, Action: action})
	if err != nil {
		return fmt.Errorf("authorize %s on %s: %w", action, pool, err)
	}
	if !ok {
		return apierror.Credential("%s is not authorized to %s", subject, action)
	}
	return nil
}

// decodeConfig round-trips a config revision's generic Data blob into a
// typed value. The config store holds policy objects as map[string]any
// (so it never needs to know their shape); every typed component that
// reads one needs this conversion, the same convention
// internal/configstore/codec.go already uses for its own encode/decode of
// dynamic blobs.
func decodeConfig[T any](data map[string]any, out *T) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode config data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode config data: %w", err)
	}
	return nil
}

// poolFor loads and decodes the named Pool policy object.
func (e *Engine) poolFor(ctx context.Context, name string) (model.Pool, error) {
	rev, err := e.Config.Get(model.ConfigPool, name)
	if err != nil {
		return model.Pool{}, err
	}
	var pool model.Pool
	if err := decodeConfig(rev.Data, &pool); err != nil {
		return model.Pool{}, fmt.Errorf("decode pool %q: %w", name, err)
	}
	pool.Name = name
	return pool, nil
}

// podTemplateFor loads and decodes one named PodTemplate overlay,
// implementing compiler.PodTemplates against the config store.
func (e *Engine) podTemplateFor(name string) (model.PodTemplate, bool) {
	rev, err := e.Config.Get(model.ConfigPodTemplate, name)
	if err != nil {
		return model.PodTemplate{}, false
	}
	var tmpl model.PodTemplate
	if err := decodeConfig(rev.Data, &tmpl); err != nil {
		return model.PodTemplate{}, false
	}
	return tmpl, true
}

// resolveAssertions dereferences named resource_validation config entries
// into their Assertion rules, implementing admission.Options.ResolveAssertions.
func (e *Engine) resolveAssertions(names []string) ([]model.Assertion, error) {
	out := make([]model.Assertion, 0, len(names))
	for _, name := range names {
		rev, err := e.Config.Get(model.ConfigResourceValidation, name)
		if err != nil {
			return nil, err
		}
		var assertion model.Assertion
		if err := decodeConfig(rev.Data, &assertion); err != nil {
			return nil, fmt.Errorf("decode resource_validation %q: %w", name, err)
		}
		out = append(out, assertion)
	}
	return out, nil
}

// platformFor builds admission.Options.Platform scoped to one pool: a
// task's resolved platform name only has to be unique within its pool.
func platformFor(pool model.Pool) func(name string) (model.Platform, bool) {
	return func(name string) (model.Platform, bool) {
		p, ok := pool.Platforms[name]
		return p, ok
	}
}

// nodeAllocatableTokens derives the `K8_*` token set (§4.4) a per-node
// assertion evaluates against, mirroring compiler.BuildUserTokens's
// USER_* naming for the node side of the same expression language.
func nodeAllocatableTokens(n backend.Node) map[string]any {
	return map[string]any{
		"K8_ALLOCATABLE_CPU":     n.Allocatable.CPU,
		"K8_ALLOCATABLE_MEMORY":  n.Allocatable.Memory,
		"K8_ALLOCATABLE_STORAGE": n.Allocatable.Storage,
		"K8_ALLOCATABLE_GPU":     n.Allocatable.GPU,
		"K8_USAGE_CPU":           n.WorkflowUsage.CPU + n.NonWorkflowUsage.CPU,
		"K8_USAGE_MEMORY":        n.WorkflowUsage.Memory + n.NonWorkflowUsage.Memory,
		"K8_USAGE_STORAGE":       n.WorkflowUsage.Storage + n.NonWorkflowUsage.Storage,
		"K8_USAGE_GPU":           n.WorkflowUsage.GPU + n.NonWorkflowUsage.GPU,
	}
}

// backendConfigFor loads and decodes the named Backend policy object, the
// config-store counterpart of the live backend.Backend transport
// e.BackendFor resolves: NodeConditionsPfx lives here, not on the
// transport.
func (e *Engine) backendConfigFor(name string) (model.Backend, error) {
	rev, err := e.Config.Get(model.ConfigBackend, name)
	if err != nil {
		return model.Backend{}, err
	}
	var cfg model.Backend
	if err := decodeConfig(rev.Data, &cfg); err != nil {
		return model.Backend{}, fmt.Errorf("decode backend %q: %w", name, err)
	}
	cfg.Name = name
	return cfg, nil
}

// nodesFor builds admission.PlatformNodes against backendName: it lists
// every node the backend reports, excludes any node the backend has
// tainted into maintenance (§4.4's "backend online but node not
// schedulable" gap), and narrows to ones whose Platforms include platform.
func (e *Engine) nodesFor(backendName string) admission.PlatformNodes {
	return func(platform string) ([]admission.NodeCandidate, error) {
		if e.BackendFor == nil {
			return nil, nil
		}
		be, err := e.BackendFor(backendName)
		if err != nil {
			return nil, fmt.Errorf("resolve backend %q: %w", backendName, err)
		}
		res, err := be.GetResources(context.Background())
		if err != nil {
			return nil, fmt.Errorf("get_resources from backend %q: %w", backendName, err)
		}
		nodes := res.Nodes
		if cfg, cfgErr := e.backendConfigFor(backendName); cfgErr == nil && cfg.NodeConditionsPfx != "" {
			nodes = backend.ExcludeMaintenance(nodes, cfg.NodeConditionsPfx)
		}
		var out []admission.NodeCandidate
		for _, n := range nodes {
			for _, p := range n.Platforms {
				if p == platform {
					out = append(out, admission.NodeCandidate{Hostname: n.Hostname, AllocatableField: nodeAllocatableTokens(n)})
					break
				}
			}
		}
		return out, nil
	}
}
