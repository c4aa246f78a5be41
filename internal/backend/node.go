// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import "strings"

// maintenanceCondition is the condition type a backend reports against a
// node it has taken into maintenance, namespaced by the backend's own
// node_conditions prefix (e.g. "osmo.io/maintenance").
const maintenanceCondition = "Maintenance"

// InMaintenance reports whether n carries a True condition of type
// "{conditionsPrefix}/Maintenance" — a node the backend has pulled out of
// scheduling even though the backend itself still reports online
// (FEATURE SUPPLEMENT item 4, §4.8: "this closes the gap between 'backend
// online' and 'node schedulable'").
func (n Node) InMaintenance(conditionsPrefix string) bool {
	want := conditionsPrefix + "/" + maintenanceCondition
	for _, c := range n.Taints {
		if c.Type == want && strings.EqualFold(c.Status, "True") {
			return true
		}
	}
	return false
}

// ExcludeMaintenance filters nodes down to those not currently under
// maintenance for the given backend (§4.4 per-node admission candidates,
// §4.7 pool quota capacity/free).
func ExcludeMaintenance(nodes []Node, conditionsPrefix string) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n.InMaintenance(conditionsPrefix) {
			continue
		}
		out = append(out, n)
	}
	return out
}
