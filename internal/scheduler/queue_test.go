// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmo-project/osmo/internal/model"
)

func TestBuildQueue_UnlimitedGuaranteeAndMaximum(t *testing.T) {
	pool := model.Pool{Name: "gpu-pool", GPU: model.GPUQuota{Guarantee: -1, Maximum: -1}}
	q := BuildQueue("ns", pool)
	assert.Equal(t, "osmo-pool-ns-gpu-pool", q.Name)
	assert.Equal(t, "osmo-default-ns", q.ParentQueue)
	assert.True(t, q.GPU.Unlimited)
	assert.True(t, q.CPU.Unlimited)
	assert.True(t, q.Memory.Unlimited)
}

func TestBuildQueue_BoundedGuaranteeSetsQuantity(t *testing.T) {
	pool := model.Pool{Name: "gpu-pool", GPU: model.GPUQuota{Guarantee: 4, Maximum: 8, Weight: 2}}
	q := BuildQueue("ns", pool)
	require.False(t, q.GPU.Unlimited)
	assert.EqualValues(t, 4, q.GPU.Quota.Value())
	assert.EqualValues(t, 8, q.GPU.Limit.Value())
	assert.Equal(t, 2.0, q.GPU.OverQuotaWeight)
}

func TestBuildTopologyCRD_NilWithoutTopologyKeys(t *testing.T) {
	pool := model.Pool{Name: "p"}
	assert.Nil(t, BuildTopologyCRD("ns", pool))
}

func TestBuildTopologyCRD_OrdersLevelsCoarsestFirst(t *testing.T) {
	pool := model.Pool{Name: "p", TopologyKeys: []model.TopologyKey{
		{Key: "rack", Label: "topology.osmo.io/rack"},
		{Key: "node", Label: "topology.osmo.io/node"},
	}}
	topo := BuildTopologyCRD("ns", pool)
	require.NotNil(t, topo)
	assert.Equal(t, "osmo-pool-ns-p-topology", topo.Name)
	require.Len(t, topo.Levels, 2)
	assert.Equal(t, "topology.osmo.io/rack", topo.Levels[0].NodeLabel)
	assert.Equal(t, "topology.osmo.io/node", topo.Levels[1].NodeLabel)
}
