// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"gopkg.in/yaml.v3"

	"github.com/osmo-project/osmo/internal/model"
)

// Parse decodes a rendered workflow document into a typed WorkflowSpec
// (§4.3 step 1) and rejects the shape error the spec calls out explicitly:
// both `groups` and `tasks` present, or neither.
func Parse(renderedYAML string) (model.WorkflowSpec, error) {
	var spec model.WorkflowSpec
	if err := yaml.Unmarshal([]byte(renderedYAML), &spec); err != nil {
		return model.WorkflowSpec{}, userErrorf("parse workflow spec: %v", err)
	}

	hasGroups := len(spec.Groups) > 0
	hasTasks := len(spec.Tasks) > 0
	if hasGroups == hasTasks {
		if hasGroups {
			return model.WorkflowSpec{}, userErrorf("workflow spec must not set both groups and tasks")
		}
		return model.WorkflowSpec{}, userErrorf("workflow spec must set exactly one of groups or tasks")
	}

	if spec.Name == "" {
		return model.WorkflowSpec{}, userErrorf("workflow spec missing name")
	}

	return spec, nil
}
