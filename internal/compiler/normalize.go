// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import "github.com/osmo-project/osmo/internal/model"

// Normalize promotes a bare `tasks[]` spec into a singleton group named
// `{workflow-name}-group` (§4.3 step 2), so every downstream step operates
// uniformly on spec.Groups.
func Normalize(spec *model.WorkflowSpec) {
	if len(spec.Tasks) == 0 {
		return
	}

	spec.Groups = []model.GroupSpec{
		{
			Name:  spec.Name + "-group",
			Tasks: spec.Tasks,
		},
	}
	spec.Tasks = nil
}
