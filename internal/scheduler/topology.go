// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/osmo-project/osmo/internal/model"
)

// topologyNode is one node of the tree built while walking task topology
// requirements (§4.5.1, step 4): the implicit root represents "no
// constraint", every other node is identified by the concatenated path of
// affinity group names down to it.
type topologyNode struct {
	path     string
	key      string
	group    string
	seen     bool
	required bool
	// mixed is set once a second requirement reaches this node disagreeing
	// on required/preferred (step 7's validation-time rejection).
	mixed    bool
	children map[string]*topologyNode // keyed by the affinity group name
	order    []string                 // insertion order of children keys
	tasks    []string                 // leaf task names landing exactly here
}

func newTopologyNode(path, group string) *topologyNode {
	return &topologyNode{path: path, group: group, children: map[string]*topologyNode{}}
}

func (n *topologyNode) child(group string) *topologyNode {
	c, ok := n.children[group]
	if !ok {
		path := group
		if n.path != "" {
			path = n.path + "-" + group
		}
		c = newTopologyNode(path, group)
		n.children[group] = c
		n.order = append(n.order, group)
	}
	return c
}

// minMember is the transitive task count under n (§4.5.1, step 6).
func (n *topologyNode) minMember() int {
	count := len(n.tasks)
	for _, childGroup := range n.order {
		count += n.children[childGroup].minMember()
	}
	return count
}

// TopologyError distinguishes the validation failures §4.5.1 names
// (uneven key sets, unknown keys, mixed required/preferred at one node).
type TopologyError struct{ msg string }

func (e *TopologyError) Error() string { return e.msg }

func topologyErrorf(format string, args ...any) error {
	return &TopologyError{msg: fmt.Sprintf(format, args...)}
}

// BuiltTopology is the result of running §4.5.1 over one task group: the
// PodGroup's own top-level constraint (after promotion), the subgroup
// list (sorted by name per the determinism guarantee), and the subgroup
// path each task's pod should be labeled with.
type BuiltTopology struct {
	TopLevel     *TopologyConstraint
	Subgroups    []Subgroup
	TaskSubgroup map[string]string // task name -> subgroup path ("" if none)
}

// BuildTopology runs the §4.5.1 algorithm for one group's tasks against
// the pool's ordered topology_keys (coarsest first). Tasks with no
// Topology requirements at all are permitted only if every task in the
// group likewise omits them (step 1).
func BuildTopology(poolKeys []model.TopologyKey, tasks []model.TaskSpec) (*BuiltTopology, error) {
	keyOrder := make(map[string]int, len(poolKeys))
	for i, k := range poolKeys {
		keyOrder[k.Key] = i
	}

	anyTopology := false
	for _, t := range tasks {
		if len(t.Topology) > 0 {
			anyTopology = true
			break
		}
	}
	if !anyTopology {
		return &BuiltTopology{TaskSubgroup: map[string]string{}}, nil
	}

	keySet := func(reqs []model.TopologyRequirement) string {
		keys := make([]string, len(reqs))
		for i, r := range reqs {
			keys[i] = r.Key
		}
		sort.Strings(keys)
		return strings.Join(keys, ",")
	}

	var reference string
	for i, t := range tasks {
		if len(t.Topology) == 0 {
			return nil, topologyErrorf("task %q omits topology requirements while other tasks in its group carry them", t.Name)
		}
		ks := keySet(t.Topology)
		if i == 0 {
			reference = ks
		} else if ks != reference {
			return nil, topologyErrorf("task %q references a different topology key set than the rest of its group", t.Name)
		}
		for _, r := range t.Topology {
			if _, ok := keyOrder[r.Key]; !ok {
				return nil, topologyErrorf("task %q references unknown topology key %q", t.Name, r.Key)
			}
		}
	}

	root := newTopologyNode("", "")
	for _, t := range tasks {
		reqs := append([]model.TopologyRequirement{}, t.Topology...)
		sort.Slice(reqs, func(i, j int) bool { return keyOrder[reqs[i].Key] < keyOrder[reqs[j].Key] })

		cur := root
		for _, r := range reqs {
			cur = cur.child(r.Group)
			cur.key = r.Key
			if !cur.seen {
				cur.seen = true
				cur.required = r.Required
			} else if cur.required != r.Required {
				cur.mixed = true
			}
		}
		cur.tasks = append(cur.tasks, t.Name)
	}

	// Step 5: promote while root has exactly one child; the coarsest
	// shared level becomes the PodGroup's own top-level constraint.
	var topLevel *TopologyConstraint
	for len(root.order) == 1 {
		only := root.children[root.order[0]]
		if only.mixed {
			return nil, topologyErrorf("topology group %q mixes required and preferred requirements at the same level", only.path)
		}
		tc := constraintFor(only)
		topLevel = &tc
		root = only
	}

	var subgroups []Subgroup
	taskSubgroup := map[string]string{}
	for _, taskName := range root.tasks {
		taskSubgroup[taskName] = ""
	}
	for _, childGroup := range root.order {
		if err := walkSubgroups(root.children[childGroup], "", &subgroups, taskSubgroup); err != nil {
			return nil, err
		}
	}

	sort.Slice(subgroups, func(i, j int) bool { return subgroups[i].Name < subgroups[j].Name })

	return &BuiltTopology{TopLevel: topLevel, Subgroups: subgroups, TaskSubgroup: taskSubgroup}, nil
}

// walkSubgroups emits a Subgroup for every node reached below the
// post-promotion root (§4.5.1, step 6: every such node either has more
// than one sibling — the root had to have ≥2 children left for promotion
// to have stopped — or has a parent), and stamps each leaf task with its
// node's path.
func walkSubgroups(n *topologyNode, parentPath string, out *[]Subgroup, taskSubgroup map[string]string) error {
	if n.mixed {
		return topologyErrorf("topology group %q mixes required and preferred requirements at the same level", n.path)
	}

	*out = append(*out, Subgroup{
		Name:               n.path,
		MinMember:          n.minMember(),
		TopologyConstraint: constraintFor(n),
		Parent:             parentPath,
	})

	for _, taskName := range n.tasks {
		taskSubgroup[taskName] = n.path
	}

	for _, childGroup := range n.order {
		if err := walkSubgroups(n.children[childGroup], n.path, out, taskSubgroup); err != nil {
			return err
		}
	}
	return nil
}

func constraintFor(n *topologyNode) TopologyConstraint {
	tc := TopologyConstraint{Topology: n.key}
	if n.required {
		tc.RequiredTopologyLevel = n.group
	} else {
		tc.PreferredTopologyLevel = n.group
	}
	return tc
}
