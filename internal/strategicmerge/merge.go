// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package strategicmerge

import (
	"fmt"
	"sort"

	"github.com/osmo-project/osmo/internal/clone"
)

// Merge recursively overlays patch onto base and returns a new map; base and
// patch are never mutated. Dict keys recurse. A `$action: "delete"` on a key
// in patch removes that key from the result. Lists are merged according to
// mergeList's rules. Marker fields are stripped from the result at every
// level.
func Merge(base, patch map[string]any) (map[string]any, error) {
	result := clone.DeepCopyMap(base)
	if result == nil {
		result = map[string]any{}
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := patch[key]

		if m, ok := value.(map[string]any); ok && isDeleteAction(m) {
			delete(result, key)
			continue
		}

		switch v := value.(type) {
		case map[string]any:
			if existing, ok := result[key].(map[string]any); ok {
				merged, err := Merge(existing, v)
				if err != nil {
					return nil, fmt.Errorf("key %q: %w", key, err)
				}
				result[key] = merged
			} else {
				result[key] = stripMarkers(clone.DeepCopyMap(v))
			}
		case []any:
			existing, _ := result[key].([]any)
			merged, err := mergeList(existing, v)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			result[key] = merged
		default:
			result[key] = v
		}
	}

	return stripMarkers(result).(map[string]any), nil
}

// mergeList implements the list-merge rule: dicts carrying an `$index` field
// are positional patches against base; everything else replaces the list
// wholesale.
func mergeList(base, patch []any) ([]any, error) {
	if !isIndexedPatch(patch) {
		out := make([]any, 0, len(patch))
		for _, item := range patch {
			out = append(out, stripMarkers(clone.DeepCopy(item)))
		}
		return out, nil
	}

	byIndex := map[int]map[string]any{}
	var unindexed []map[string]any

	for _, item := range patch {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if raw, has := m[markerIndex]; has {
			idx, err := toInt(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid $index %v: %w", raw, err)
			}
			byIndex[idx] = m
		} else {
			unindexed = append(unindexed, m)
		}
	}

	result := make([]any, 0, len(base))
	for i, baseItem := range base {
		m, has := byIndex[i]
		if !has {
			result = append(result, clone.DeepCopy(baseItem))
			continue
		}
		merged, keep, err := applyIndexedItem(baseItem, m)
		if err != nil {
			return nil, err
		}
		if keep {
			result = append(result, merged)
		}
	}

	var extraIdx []int
	for idx := range byIndex {
		if idx >= len(base) {
			extraIdx = append(extraIdx, idx)
		}
	}
	sort.Ints(extraIdx)
	for _, idx := range extraIdx {
		merged, keep, err := applyIndexedItem(nil, byIndex[idx])
		if err != nil {
			return nil, err
		}
		if keep {
			result = append(result, merged)
		}
	}

	for _, m := range unindexed {
		if isDeleteAction(m) {
			continue
		}
		result = append(result, stripMarkers(clone.DeepCopyMap(m)))
	}

	return result, nil
}

// applyIndexedItem applies one `$index`-addressed patch item against the
// existing base element (nil if the index falls past the end of base,
// meaning there is nothing to merge into). keep is false when the item
// should be dropped ($action: delete).
func applyIndexedItem(baseItem any, patchItem map[string]any) (merged any, keep bool, err error) {
	action, _ := patchItem[markerAction].(string)
	switch action {
	case ActionDelete:
		return nil, false, nil
	case ActionReplace:
		return stripMarkers(clone.DeepCopyMap(patchItem)), true, nil
	default:
		if baseMap, ok := baseItem.(map[string]any); ok {
			m, err := Merge(baseMap, patchItem)
			if err != nil {
				return nil, false, err
			}
			return m, true, nil
		}
		return stripMarkers(clone.DeepCopyMap(patchItem)), true, nil
	}
}

// MergeByName composes two lists of dicts keyed by nameField: items sharing
// the same name merge recursively (via Merge); items in overlay with no
// match in base are appended. This is how pod-template container arrays
// compose across the common-pod-template stack and the platform overlay.
func MergeByName(base, overlay []any, nameField string) ([]any, error) {
	result := make([]any, 0, len(base)+len(overlay))
	index := map[string]int{}

	for _, item := range base {
		cp := clone.DeepCopy(item)
		result = append(result, cp)
		if m, ok := cp.(map[string]any); ok {
			if name, ok := m[nameField].(string); ok {
				index[name] = len(result) - 1
			}
		}
	}

	for _, item := range overlay {
		m, ok := item.(map[string]any)
		if !ok {
			result = append(result, clone.DeepCopy(item))
			continue
		}
		name, hasName := m[nameField].(string)
		if hasName {
			if i, found := index[name]; found {
				baseMap, _ := result[i].(map[string]any)
				merged, err := Merge(baseMap, m)
				if err != nil {
					return nil, fmt.Errorf("merging %s=%q: %w", nameField, name, err)
				}
				result[i] = merged
				continue
			}
		}
		result = append(result, stripMarkers(clone.DeepCopyMap(m)))
		if hasName {
			index[name] = len(result) - 1
		}
	}

	return result, nil
}

func isDeleteAction(m map[string]any) bool {
	action, _ := m[markerAction].(string)
	return action == ActionDelete
}

// isIndexedPatch reports whether patch is a list of dicts where at least one
// element carries an `$index` field. Per the strategic-merge rule, such a
// list is merged positionally; any other list shape (non-dicts, or dicts
// with no `$index` anywhere) is replaced wholesale.
func isIndexedPatch(patch []any) bool {
	if len(patch) == 0 {
		return false
	}
	hasIndex := false
	for _, item := range patch {
		m, ok := item.(map[string]any)
		if !ok {
			return false
		}
		if _, has := m[markerIndex]; has {
			hasIndex = true
		}
	}
	return hasIndex
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported $index type %T", v)
	}
}
