// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"sort"
	"strings"
)

// CustomAPIRef names a non-core API path for a cleanup spec's resource
// type (§4.5 "Cleanup specs").
type CustomAPIRef struct {
	Group   string
	Version string
	Plural  string
}

// CleanupSpec is a backend-agnostic descriptor of what to delete by label
// selector before applying new resources (§4.5 "Cleanup specs"). The
// Backend Interface's apply_cleanup_specs operation consumes these.
type CleanupSpec struct {
	ResourceType string
	Labels       map[string]string
	CustomAPI    *CustomAPIRef
}

// key returns the dedup/compare key: (resource_type, sorted labels, api
// path), matching §4.5's merge rule exactly.
func (c CleanupSpec) key() string {
	keys := make([]string, 0, len(c.Labels))
	for k := range c.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(c.ResourceType)
	b.WriteByte('|')
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(c.Labels[k])
		b.WriteByte(',')
	}
	b.WriteByte('|')
	if c.CustomAPI != nil {
		b.WriteString(c.CustomAPI.Group)
		b.WriteByte('/')
		b.WriteString(c.CustomAPI.Version)
		b.WriteByte('/')
		b.WriteString(c.CustomAPI.Plural)
	}
	return b.String()
}

// MergeCleanupSpecs deduplicates two cleanup-spec lists by
// (resource_type, sorted labels, api path) (§4.5 "Cleanup specs": "When
// switching scheduler types, cleanup specs from both old and new
// schedulers are merged... so stale CRDs are reclaimed"). old entries
// come first so a scheduler-type switch still reclaims what the previous
// scheduler left behind.
func MergeCleanupSpecs(old, next []CleanupSpec) []CleanupSpec {
	seen := map[string]bool{}
	merged := make([]CleanupSpec, 0, len(old)+len(next))
	for _, specs := range [][]CleanupSpec{old, next} {
		for _, s := range specs {
			k := s.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, s)
		}
	}
	return merged
}

// CleanupSpecsFor builds the standard cleanup descriptors for one pool's
// PodGroup/Queue/Topology objects, scoped by the pool's label.
func CleanupSpecsFor(pool string) []CleanupSpec {
	poolLabels := map[string]string{LabelPool: pool}
	return []CleanupSpec{
		{ResourceType: "PodGroup", Labels: poolLabels},
		{ResourceType: "Queue", Labels: poolLabels},
		{ResourceType: "Topology", Labels: poolLabels},
	}
}
