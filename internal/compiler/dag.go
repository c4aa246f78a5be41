// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"fmt"
	"strings"

	"github.com/osmo-project/osmo/internal/model"
)

// ValidateDAG checks every group's `inputs` references a task or group
// already defined earlier in groups[] (§4.3 step 4). Self- and
// forward-references are rejected. Cross-workflow inputs of the form
// `{prev_workflow_id}:{task_name}` are resolved via resolver and must name
// a finished task.
func ValidateDAG(groups []model.GroupSpec, resolver CrossWorkflowResolver) error {
	defined := map[string]bool{}

	for _, g := range groups {
		for _, in := range g.Inputs {
			if err := validateInputRef(in, g.Name, defined, resolver); err != nil {
				return err
			}
		}
		for _, t := range g.Tasks {
			for _, in := range t.Inputs {
				if err := validateInputRef(in, t.Name, defined, resolver); err != nil {
					return err
				}
			}
			defined[normalizeNameKey(t.Name)] = true
		}
		defined[normalizeNameKey(g.Name)] = true
	}
	return nil
}

func validateInputRef(in model.InputRef, referrer string, defined map[string]bool, resolver CrossWorkflowResolver) error {
	symbol := in.Task
	if symbol == "" {
		symbol = in.Group
	}
	if symbol == "" {
		// URL/dataset/update_dataset inputs carry no DAG edge.
		return nil
	}

	if workflowID, taskName, ok := splitCrossWorkflowRef(symbol); ok {
		if resolver == nil {
			return userErrorf("%q references cross-workflow input %q but no resolver was configured", referrer, symbol)
		}
		task, found, err := resolver(workflowID, taskName)
		if err != nil {
			return fmt.Errorf("resolve cross-workflow input %q: %w", symbol, err)
		}
		if !found {
			return userErrorf("%q references cross-workflow input %q which does not exist", referrer, symbol)
		}
		if !task.Status.Finished() {
			return userErrorf("%q references cross-workflow input %q which has not finished (status %s)", referrer, symbol, task.Status)
		}
		return nil
	}

	key := normalizeNameKey(symbol)
	if key == normalizeNameKey(referrer) {
		return userErrorf("%q has a self-referencing input %q", referrer, symbol)
	}
	if !defined[key] {
		return userErrorf("%q references %q before it is defined (forward reference)", referrer, symbol)
	}
	return nil
}

// splitCrossWorkflowRef recognizes the `{prev_workflow_id}:{task_name}`
// form (§4.3 step 4). workflow_ids contain no ':', so the first colon is
// the separator.
func splitCrossWorkflowRef(symbol string) (workflowID, taskName string, ok bool) {
	idx := strings.IndexByte(symbol, ':')
	if idx < 0 {
		return "", "", false
	}
	return symbol[:idx], symbol[idx+1:], true
}
