// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"fmt"

	"github.com/osmo-project/osmo/internal/model"
)

// GroupState is the minimal fact RestartPlan needs about one group of the
// parent workflow being restarted: its name and whether it finished
// successfully.
type GroupState struct {
	Name      string
	Completed bool
}

// RestartPlan rewrites a restart submission's spec (§9 feature supplement
// #1): groups whose parent attempt already COMPLETED are dropped, and in
// every remaining group, any `inputs` entry of the form `{task: name}`
// naming a dropped group or a task inside one is rewritten to `{task: "{parentWorkflowID}:{name}"}` so the compiled task pulls the
// parent's output directly instead of expecting a sibling in this run.
func RestartPlan(spec *model.WorkflowSpec, parentWorkflowID string, parentGroups []GroupState) error {
	completed := map[string]bool{}
	for _, g := range parentGroups {
		if g.Completed {
			completed[normalizeNameKey(g.Name)] = true
		}
	}

	skipped := map[string]bool{}
	for k := range completed {
		skipped[k] = true
	}
	for _, g := range spec.Groups {
		if completed[normalizeNameKey(g.Name)] {
			for _, t := range g.Tasks {
				skipped[normalizeNameKey(t.Name)] = true
			}
		}
	}

	kept := make([]model.GroupSpec, 0, len(spec.Groups))
	for _, g := range spec.Groups {
		if completed[normalizeNameKey(g.Name)] {
			continue
		}
		rewriteGroupInputs(&g, skipped, parentWorkflowID)
		kept = append(kept, g)
	}
	spec.Groups = kept
	return nil
}

func rewriteGroupInputs(g *model.GroupSpec, completed map[string]bool, parentWorkflowID string) {
	for i := range g.Inputs {
		rewriteInputRef(&g.Inputs[i], completed, parentWorkflowID)
	}
	for i := range g.Tasks {
		for j := range g.Tasks[i].Inputs {
			rewriteInputRef(&g.Tasks[i].Inputs[j], completed, parentWorkflowID)
		}
	}
}

func rewriteInputRef(in *model.InputRef, completed map[string]bool, parentWorkflowID string) {
	if in.Task == "" {
		return
	}
	if !completed[normalizeNameKey(in.Task)] {
		return
	}
	in.Task = fmt.Sprintf("%s:%s", parentWorkflowID, in.Task)
}
