// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package strategicmerge implements the strategic-merge-patch semantics used
// by the config store's patch operation and by pod-template composition.
//
// Two distinct merge strategies live here:
//
//   - Merge: recursive map merge with positional list markers. A `$action:
//     "delete"` on a map key removes it. A list of dicts carrying `$index`
//     fields is mutated positionally (replace/delete/merge per element);
//     unmatched patch items are appended. Lists of non-dicts, or lists of
//     dicts with no `$index` field, are replaced wholesale.
//   - MergeByName: list merge keyed by a named field (used to compose
//     container arrays across pod-template layers), where items sharing the
//     same name are merged recursively and unmatched items are appended.
//
// The marker fields `$action` and `$index` never survive into the merged
// result.
package strategicmerge

// ActionDelete removes the map key (or list element) it annotates.
const ActionDelete = "delete"

// ActionReplace replaces the list element in place instead of merging into it.
const ActionReplace = "replace"

const (
	markerAction = "$action"
	markerIndex  = "$index"
)
