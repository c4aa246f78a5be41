// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmo-project/osmo/internal/model"
)

func rackNodeKeys() []model.TopologyKey {
	return []model.TopologyKey{
		{Key: "rack", Label: "topology.osmo.io/rack"},
		{Key: "node", Label: "topology.osmo.io/node"},
	}
}

func TestBuildTopology_NoRequirementsProducesNoConstraint(t *testing.T) {
	built, err := BuildTopology(rackNodeKeys(), []model.TaskSpec{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	assert.Nil(t, built.TopLevel)
	assert.Empty(t, built.Subgroups)
}

func TestBuildTopology_UnevenKeySetRejects(t *testing.T) {
	tasks := []model.TaskSpec{
		{Name: "a", Topology: []model.TopologyRequirement{{Key: "rack", Group: "r1", Required: true}}},
		{Name: "b"},
	}
	_, err := BuildTopology(rackNodeKeys(), tasks)
	require.Error(t, err)
	assert.IsType(t, &TopologyError{}, err)
}

func TestBuildTopology_UnknownKeyRejects(t *testing.T) {
	tasks := []model.TaskSpec{
		{Name: "a", Topology: []model.TopologyRequirement{{Key: "zone", Group: "z1", Required: true}}},
	}
	_, err := BuildTopology(rackNodeKeys(), tasks)
	require.Error(t, err)
}

func TestBuildTopology_SingleSharedPathPromotesFully(t *testing.T) {
	tasks := []model.TaskSpec{
		{Name: "a", Topology: []model.TopologyRequirement{
			{Key: "rack", Group: "r1", Required: true},
			{Key: "node", Group: "n1", Required: false},
		}},
		{Name: "b", Topology: []model.TopologyRequirement{
			{Key: "rack", Group: "r1", Required: true},
			{Key: "node", Group: "n1", Required: false},
		}},
	}
	built, err := BuildTopology(rackNodeKeys(), tasks)
	require.NoError(t, err)
	require.NotNil(t, built.TopLevel)
	assert.Equal(t, "node", built.TopLevel.Topology)
	assert.Equal(t, "n1", built.TopLevel.PreferredTopologyLevel)
	assert.Empty(t, built.Subgroups)
	assert.Equal(t, "", built.TaskSubgroup["a"])
}

func TestBuildTopology_BranchingEmitsSortedSubgroups(t *testing.T) {
	tasks := []model.TaskSpec{
		{Name: "a", Topology: []model.TopologyRequirement{
			{Key: "rack", Group: "r1", Required: true},
			{Key: "node", Group: "n1", Required: false},
		}},
		{Name: "b", Topology: []model.TopologyRequirement{
			{Key: "rack", Group: "r1", Required: true},
			{Key: "node", Group: "n2", Required: false},
		}},
		{Name: "c", Topology: []model.TopologyRequirement{
			{Key: "rack", Group: "r2", Required: true},
			{Key: "node", Group: "n3", Required: false},
		}},
	}
	built, err := BuildTopology(rackNodeKeys(), tasks)
	require.NoError(t, err)
	// The tasks diverge at the very first (rack) level, so the root never
	// has exactly one child and no top-level promotion happens.
	assert.Nil(t, built.TopLevel)
	require.Len(t, built.Subgroups, 5)

	names := make([]string, len(built.Subgroups))
	for i, s := range built.Subgroups {
		names[i] = s.Name
	}
	assert.True(t, sort.StringsAreSorted(names))

	// a and b share rack r1 but diverge at node; c is a separate rack.
	assert.Equal(t, "r1-n1", built.TaskSubgroup["a"])
	assert.Equal(t, "r1-n2", built.TaskSubgroup["b"])
	assert.NotEqual(t, built.TaskSubgroup["a"], built.TaskSubgroup["b"])

	for _, s := range built.Subgroups {
		if s.Name == "r1-n1" || s.Name == "r1-n2" {
			assert.Equal(t, "r1", s.Parent)
		}
	}
}

func TestBuildTopology_MixedRequirementsAtSameNodeRejects(t *testing.T) {
	tasks := []model.TaskSpec{
		{Name: "a", Topology: []model.TopologyRequirement{{Key: "rack", Group: "r1", Required: true}}},
		{Name: "b", Topology: []model.TopologyRequirement{{Key: "rack", Group: "r1", Required: false}}},
	}
	_, err := BuildTopology(rackNodeKeys(), tasks)
	require.Error(t, err)
}

func TestBuildTopology_MinMemberCountsTransitiveTasks(t *testing.T) {
	tasks := []model.TaskSpec{
		{Name: "a", Topology: []model.TopologyRequirement{{Key: "rack", Group: "r1", Required: true}}},
		{Name: "b", Topology: []model.TopologyRequirement{{Key: "rack", Group: "r1", Required: true}}},
		{Name: "c", Topology: []model.TopologyRequirement{{Key: "rack", Group: "r2", Required: true}}},
	}
	built, err := BuildTopology(rackNodeKeys(), tasks)
	require.NoError(t, err)
	for _, s := range built.Subgroups {
		if s.Name == "r1" {
			assert.Equal(t, 2, s.MinMember)
		}
		if s.Name == "r2" {
			assert.Equal(t, 1, s.MinMember)
		}
	}
}
