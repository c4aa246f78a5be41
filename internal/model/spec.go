// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// WorkflowSpec is the parsed form of a submitted workflow YAML document
// (§6, version 2). Exactly one of Groups or Tasks is populated before
// normalization; the compiler promotes bare Tasks into a singleton group.
type WorkflowSpec struct {
	Version   int                     `yaml:"version"`
	Name      string                  `yaml:"name"`
	Pool      string                  `yaml:"pool,omitempty"`
	Resources map[string]ResourceSpec `yaml:"resources"`
	Timeout   TimeoutSpec             `yaml:"timeout"`
	Groups    []GroupSpec             `yaml:"groups,omitempty"`
	Tasks     []TaskSpec              `yaml:"tasks,omitempty"`
}

// TimeoutSpec carries the raw exec/queue timeout durations from the
// workflow YAML before pool defaults are applied.
type TimeoutSpec struct {
	ExecTimeout  time.Duration `yaml:"exec_timeout"`
	QueueTimeout time.Duration `yaml:"queue_timeout"`
}

// InputRef names a dependency of a group or task: exactly one of Task,
// Group, URL, Dataset, or UpdateDataset is set.
type InputRef struct {
	Task          string `yaml:"task,omitempty"`
	Group         string `yaml:"group,omitempty"`
	URL           string `yaml:"url,omitempty"`
	Dataset       string `yaml:"dataset,omitempty"`
	UpdateDataset string `yaml:"update_dataset,omitempty"`
}

// GroupSpec is one task group as written in the workflow YAML.
type GroupSpec struct {
	Name    string     `yaml:"name"`
	Barrier bool       `yaml:"barrier"`
	Inputs  []InputRef `yaml:"inputs,omitempty"`
	Tasks   []TaskSpec `yaml:"tasks"`
}

// TopologyRequirement pins a task to a shared affinity identifier at one
// topology level (§4.5.1).
type TopologyRequirement struct {
	Key      string `yaml:"key"`
	Group    string `yaml:"group"`
	Required bool   `yaml:"required"`
}

// ExitActionTrigger is the terminal outcome an ExitAction watches for.
type ExitActionTrigger string

const (
	ExitOnCompleted ExitActionTrigger = "COMPLETED"
	ExitOnFailed    ExitActionTrigger = "FAILED"
)

// ExitAction is evaluated by the State Machine on a task's terminal
// transition, before group aggregation runs (§9 exit actions).
type ExitAction struct {
	Notify        bool `yaml:"notify,omitempty"`
	CascadeCancel bool `yaml:"cascadeCancel,omitempty"`
}

// TaskSpec is one task as written in the workflow YAML.
type TaskSpec struct {
	Name         string                            `yaml:"name"`
	Image        string                            `yaml:"image"`
	Command      []string                          `yaml:"command,omitempty"`
	Environment  map[string]string                 `yaml:"environment,omitempty"`
	Resources    string                            `yaml:"resources,omitempty"` // ResourceSpec name, default "default"
	Inputs       []InputRef                        `yaml:"inputs,omitempty"`
	Outputs      []string                          `yaml:"outputs,omitempty"`
	Credentials  map[string]any                    `yaml:"credentials,omitempty"`
	Privileged   bool                              `yaml:"privileged"`
	HostNetwork  bool                              `yaml:"hostNetwork"`
	VolumeMounts []string                          `yaml:"volumeMounts,omitempty"`
	ExitActions  map[ExitActionTrigger]ExitAction  `yaml:"exitActions,omitempty"`
	Lead         bool                              `yaml:"lead"`
	CacheSize    int64                             `yaml:"cacheSize,omitempty"`
	Topology     []TopologyRequirement             `yaml:"topology,omitempty"`
}

// SubmissionContext carries the request-scoped facts a compile needs
// alongside the rendered spec (§4.3): who submitted it, at what priority,
// against which pool, and whether it restarts a parent.
type SubmissionContext struct {
	User           string
	Pool           string
	Priority       Priority
	ParentName     string
	ParentJobID    int64
	DefaultValues  map[string]any
	ExplicitValues map[string]any
}
