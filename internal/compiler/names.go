// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"regexp"
	"strings"

	"github.com/osmo-project/osmo/internal/model"
)

var nameRE = regexp.MustCompile(`^[a-zA-Z]([a-zA-Z0-9_-]*[a-zA-Z0-9])?$`)

// normalizeNameKey folds a name to its case/`_`-vs-`-` equivalence class
// for duplicate detection (§4.3 step 3: "compare case-insensitively with
// `_` and `-` treated as equal").
func normalizeNameKey(name string) string {
	folded := strings.ToLower(name)
	return strings.ReplaceAll(folded, "_", "-")
}

// ValidateNames enforces the name-discipline rule (§4.3 step 3) across
// every group and task name in spec.
func ValidateNames(groups []model.GroupSpec) error {
	seen := map[string]string{}

	checkName := func(kind, name string) error {
		if !nameRE.MatchString(name) {
			return userErrorf("%s name %q is invalid: must match [a-zA-Z]([a-zA-Z0-9_-]*[a-zA-Z0-9])?", kind, name)
		}
		key := normalizeNameKey(name)
		if existing, dup := seen[key]; dup {
			return userErrorf("%s name %q collides with %q (case/underscore/hyphen-insensitive)", kind, name, existing)
		}
		seen[key] = name
		return nil
	}

	for _, g := range groups {
		if err := checkName("group", g.Name); err != nil {
			return err
		}
		for _, t := range g.Tasks {
			if err := checkName("task", t.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
