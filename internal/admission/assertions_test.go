// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/render"
)

func TestSplitAssertions_StaticVsPerNode(t *testing.T) {
	assertions := []model.Assertion{
		{Operator: model.OpLE, LeftOperand: "USER_GPU", RightOperand: "8"},
		{Operator: model.OpLE, LeftOperand: "USER_GPU", RightOperand: "K8_ALLOCATABLE_GPU"},
	}
	static, perNode := SplitAssertions(assertions)
	require.Len(t, static, 1)
	require.Len(t, perNode, 1)
	assert.Equal(t, "8", static[0].RightOperand)
	assert.Equal(t, "K8_ALLOCATABLE_GPU", perNode[0].RightOperand)
}

func TestEvaluateAssertion_Operators(t *testing.T) {
	engine := render.NewEngine()
	vars := map[string]any{"USER_GPU": int64(2)}

	ok, err := EvaluateAssertion(engine, model.Assertion{Operator: model.OpLE, LeftOperand: "USER_GPU", RightOperand: "8"}, vars)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateAssertion(engine, model.Assertion{Operator: model.OpGT, LeftOperand: "USER_GPU", RightOperand: "8"}, vars)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaticAssertionCache_CachesAndFails(t *testing.T) {
	cache := NewStaticAssertionCache(render.NewEngine())
	assertions := []model.Assertion{
		{Operator: model.OpLE, AssertMessage: "gpu within limit", LeftOperand: "USER_GPU", RightOperand: "1"},
	}
	spec := model.ResourceSpec{GPU: 2}

	err := cache.Check(spec, assertions)
	require.Error(t, err)
	assert.True(t, IsUserError(err))

	// Second call hits the cache and returns the same error without
	// re-evaluating.
	err2 := cache.Check(spec, assertions)
	require.Error(t, err2)
}

func TestCheckPerNode_SucceedsOnFirstPassingCandidate(t *testing.T) {
	engine := render.NewEngine()
	assertions := []model.Assertion{
		{Operator: model.OpLE, AssertMessage: "fits", LeftOperand: "USER_GPU", RightOperand: "K8_ALLOCATABLE_GPU"},
	}
	candidates := []NodeCandidate{
		{Hostname: "node-a", AllocatableField: map[string]any{"K8_ALLOCATABLE_GPU": int64(1)}},
		{Hostname: "node-b", AllocatableField: map[string]any{"K8_ALLOCATABLE_GPU": int64(4)}},
	}
	userTokens := map[string]any{"USER_GPU": int64(2)}

	node, failures, err := CheckPerNode(engine, userTokens, candidates, assertions)
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, "node-b", node)
}

func TestCheckPerNode_ReturnsFailureTableWhenNonePass(t *testing.T) {
	engine := render.NewEngine()
	assertions := []model.Assertion{
		{Operator: model.OpLE, AssertMessage: "fits", LeftOperand: "USER_GPU", RightOperand: "K8_ALLOCATABLE_GPU"},
	}
	candidates := []NodeCandidate{
		{Hostname: "node-a", AllocatableField: map[string]any{"K8_ALLOCATABLE_GPU": int64(1)}},
	}
	userTokens := map[string]any{"USER_GPU": int64(8)}

	node, failures, err := CheckPerNode(engine, userTokens, candidates, assertions)
	require.NoError(t, err)
	assert.Empty(t, node)
	require.Len(t, failures, 1)
	assert.Equal(t, "node-a", failures[0].Hostname)
	assert.Equal(t, "fits", failures[0].Reason)
}

func TestPodSecurityCache_MemoizesByKey(t *testing.T) {
	cache := NewPodSecurityCache()
	key := PodSecurityKey{Privileged: true, Platform: "default"}

	calls := 0
	checkFn := func() error { calls++; return nil }

	require.NoError(t, cache.Check(key, checkFn))
	require.NoError(t, cache.Check(key, checkFn))
	assert.Equal(t, 1, calls)
}
