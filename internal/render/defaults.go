// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package render

import "maps"

// MergeDefaults applies a template's top-level default-values block under
// the caller's explicitly supplied variables: explicit values win, and keys
// present only in defaults pass through unchanged.
func MergeDefaults(defaultValues, explicit map[string]any) map[string]any {
	merged := make(map[string]any, len(defaultValues)+len(explicit))
	maps.Copy(merged, defaultValues)
	maps.Copy(merged, explicit)
	return merged
}
