// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeInMaintenance(t *testing.T) {
	n := Node{
		Hostname: "node-a",
		Taints: []NodeCondition{
			{Type: "osmo.io/Maintenance", Status: "True"},
		},
	}
	assert.True(t, n.InMaintenance("osmo.io"))
	assert.False(t, n.InMaintenance("other.io"))
}

func TestNodeInMaintenanceFalseWithoutTaint(t *testing.T) {
	n := Node{Hostname: "node-b"}
	assert.False(t, n.InMaintenance("osmo.io"))
}

func TestNodeInMaintenanceIgnoresFalseStatus(t *testing.T) {
	n := Node{
		Hostname: "node-c",
		Taints: []NodeCondition{
			{Type: "osmo.io/Maintenance", Status: "False"},
		},
	}
	assert.False(t, n.InMaintenance("osmo.io"))
}

func TestExcludeMaintenance(t *testing.T) {
	nodes := []Node{
		{Hostname: "a"},
		{Hostname: "b", Taints: []NodeCondition{{Type: "osmo.io/Maintenance", Status: "True"}}},
		{Hostname: "c"},
	}

	out := ExcludeMaintenance(nodes, "osmo.io")

	hosts := make([]string, len(out))
	for i, n := range out {
		hosts[i] = n.Hostname
	}
	assert.Equal(t, []string{"a", "c"}, hosts)
}
