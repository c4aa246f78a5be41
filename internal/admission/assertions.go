// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package admission implements the Admission & Validator (§4.4): static
// and per-node resource assertions, registry/data-backend credential
// checks, and user quota enforcement, unified behind a single Admit entry
// point with a Full/DryRun/ValidationOnly mode (see DESIGN.md's Open
// Question resolution for why the distilled spec's two overlapping flags
// collapsed into one enum).
package admission

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osmo-project/osmo/internal/compiler"
	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/render"
)

// isK8Operand reports whether an assertion operand references any K8_*
// token, the marker that distinguishes per-node from static assertions
// (§4.4).
func isK8Operand(operand string) bool {
	return strings.Contains(operand, "K8_")
}

// SplitAssertions partitions a, in order, into the static subset (depends
// only on USER_*) and the per-node subset (references any K8_*).
func SplitAssertions(assertions []model.Assertion) (static, perNode []model.Assertion) {
	for _, a := range assertions {
		if isK8Operand(a.LeftOperand) || isK8Operand(a.RightOperand) {
			perNode = append(perNode, a)
		} else {
			static = append(static, a)
		}
	}
	return static, perNode
}

// EvaluateAssertion evaluates a single assertion's operands as CEL
// expressions against vars and applies its comparison operator. Operands
// are bare expressions (e.g. "USER_GPU", "K8_ALLOCATABLE_GPU - 1"), run
// through the teacher's own render.Engine the same way pod templates are
// (§4.2), just without the surrounding `${...}` markers in source form.
func EvaluateAssertion(engine *render.Engine, a model.Assertion, vars map[string]any) (bool, error) {
	left, err := evalOperand(engine, a.LeftOperand, vars)
	if err != nil {
		return false, fmt.Errorf("assertion %q: left operand: %w", a.AssertMessage, err)
	}
	right, err := evalOperand(engine, a.RightOperand, vars)
	if err != nil {
		return false, fmt.Errorf("assertion %q: right operand: %w", a.AssertMessage, err)
	}

	cmp, err := compareNumeric(left, right)
	if err != nil {
		return false, fmt.Errorf("assertion %q: %w", a.AssertMessage, err)
	}

	switch a.Operator {
	case model.OpLE:
		return cmp <= 0, nil
	case model.OpLT:
		return cmp < 0, nil
	case model.OpGT:
		return cmp > 0, nil
	case model.OpGE:
		return cmp >= 0, nil
	case model.OpEQ:
		return cmp == 0, nil
	case model.OpNEQ:
		return cmp != 0, nil
	default:
		return false, fmt.Errorf("assertion %q: unknown operator %q", a.AssertMessage, a.Operator)
	}
}

func evalOperand(engine *render.Engine, operand string, vars map[string]any) (any, error) {
	result, err := engine.Render("${"+operand+"}", vars)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func compareNumeric(left, right any) (int, error) {
	l, err := toFloat(left)
	if err != nil {
		return 0, err
	}
	r, err := toFloat(right)
	if err != nil {
		return 0, err
	}
	switch {
	case l < r:
		return -1, nil
	case l > r:
		return 1, nil
	default:
		return 0, nil
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("operand %v (%T) is not numeric", v, v)
	}
}

// StaticAssertionCache runs every static assertion against a ResourceSpec's
// USER_* tokens, memoized by the ResourceSpec's content (§4.4
// "Memoize... static results by ResourceSpec").
type StaticAssertionCache struct {
	engine *render.Engine
	mu     sync.Mutex
	cache  map[string]error // nil entry means "passed"
}

// NewStaticAssertionCache creates an empty cache backed by engine.
func NewStaticAssertionCache(engine *render.Engine) *StaticAssertionCache {
	return &StaticAssertionCache{engine: engine, cache: map[string]error{}}
}

// Check evaluates every static assertion for resourceSpec, returning the
// first failure (as a *UserError) or nil if all pass. Results are cached
// by a stable key derived from resourceSpec's fields.
func (c *StaticAssertionCache) Check(resourceSpec model.ResourceSpec, assertions []model.Assertion) error {
	key := resourceSpecCacheKey(resourceSpec)

	c.mu.Lock()
	if err, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	vars := compiler.BuildUserTokens(resourceSpec)

	var result error
	for _, a := range assertions {
		ok, err := EvaluateAssertion(c.engine, a, vars)
		if err != nil {
			result = fmt.Errorf("evaluate static assertion %q: %w", a.AssertMessage, err)
			break
		}
		if !ok {
			result = userErrorf("static resource assertion failed: %s", a.AssertMessage)
			break
		}
	}

	c.mu.Lock()
	c.cache[key] = result
	c.mu.Unlock()
	return result
}

func resourceSpecCacheKey(r model.ResourceSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%g|%d|%d|%d|%d", r.Name, r.Platform, r.CPU, r.Memory, r.Storage, r.GPU, r.CacheSize)
	for _, n := range r.NodesExcluded {
		b.WriteString("|ex:")
		b.WriteString(n)
	}
	return b.String()
}

// NodeCandidate is one candidate node's exposed allocatable fields,
// evaluated against per-node assertions (§4.4).
type NodeCandidate struct {
	Hostname         string
	AllocatableField map[string]any // K8_* token name -> value
}

// NodeFailure records why a single candidate node failed per-node
// assertions.
type NodeFailure struct {
	Hostname string
	Reason   string
}

// CheckPerNode evaluates perNode assertions against each candidate,
// succeeding if at least one candidate passes every assertion (§4.4).
// On failure, it returns the table of candidates and why each failed.
func CheckPerNode(engine *render.Engine, userTokens map[string]any, candidates []NodeCandidate, assertions []model.Assertion) (string, []NodeFailure, error) {
	var failures []NodeFailure
	for _, node := range candidates {
		vars := make(map[string]any, len(userTokens)+len(node.AllocatableField))
		for k, v := range userTokens {
			vars[k] = v
		}
		for k, v := range node.AllocatableField {
			vars[k] = v
		}

		passed := true
		var reason string
		for _, a := range assertions {
			ok, err := EvaluateAssertion(engine, a, vars)
			if err != nil {
				return "", nil, fmt.Errorf("node %q: evaluate per-node assertion %q: %w", node.Hostname, a.AssertMessage, err)
			}
			if !ok {
				passed = false
				reason = a.AssertMessage
				break
			}
		}
		if passed {
			return node.Hostname, nil, nil
		}
		failures = append(failures, NodeFailure{Hostname: node.Hostname, Reason: reason})
	}
	return "", failures, nil
}

// PodSecurityKey is the memoization key for privileged/host-network/
// volume-mount checks (§4.4): "(privileged, hostNetwork, tuple(volumeMounts), platform)".
type PodSecurityKey struct {
	Privileged   bool
	HostNetwork  bool
	VolumeMounts string // joined in declaration order
	Platform     string
}

// NewPodSecurityKey builds a PodSecurityKey from a task spec and its
// resolved platform name.
func NewPodSecurityKey(task model.TaskSpec, platform string) PodSecurityKey {
	mounts := append([]string(nil), task.VolumeMounts...)
	return PodSecurityKey{
		Privileged:   task.Privileged,
		HostNetwork:  task.HostNetwork,
		VolumeMounts: strings.Join(mounts, ","),
		Platform:     platform,
	}
}

// PodSecurityCache memoizes whether a given (privileged, hostNetwork,
// volumeMounts, platform) combination is allowed by the platform's
// resource validations.
type PodSecurityCache struct {
	mu    sync.Mutex
	cache map[PodSecurityKey]error
}

// NewPodSecurityCache creates an empty cache.
func NewPodSecurityCache() *PodSecurityCache {
	return &PodSecurityCache{cache: map[PodSecurityKey]error{}}
}

// Check runs checkFn for key unless already cached, and remembers the
// result.
func (c *PodSecurityCache) Check(key PodSecurityKey, checkFn func() error) error {
	c.mu.Lock()
	if err, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	err := checkFn()

	c.mu.Lock()
	c.cache[key] = err
	c.mu.Unlock()
	return err
}
