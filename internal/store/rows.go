// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/osmo-project/osmo/internal/model"
)

// workflowRow is the gorm row backing one model.Workflow. Tags and
// Plugins vary in shape per submission, so they're stored as JSON blobs
// the same way configstore stores ConfigRevision.Data and .Tags.
type workflowRow struct {
	WorkflowUUID string `gorm:"primaryKey"`
	Name         string `gorm:"index:idx_workflow_name_job,priority:1"`
	JobID        int64  `gorm:"index:idx_workflow_name_job,priority:2"`
	SubmittedBy  string
	Backend      string
	Pool         string
	Priority     string
	Status       string `gorm:"index"`

	SubmitTime time.Time
	StartTime  *time.Time
	EndTime    *time.Time

	ExecTimeoutNS  int64
	QueueTimeoutNS int64

	ParentName  string
	ParentJobID int64

	AppUUID    string
	AppVersion string

	Tags    []byte
	Plugins []byte

	CancelledBy    string
	FailureMessage string
	LogsURL        string
	OutputsBaseURL string
}

func (workflowRow) TableName() string { return "workflows" }

func workflowToRow(wf model.Workflow) (workflowRow, error) {
	tags, err := json.Marshal(wf.Tags)
	if err != nil {
		return workflowRow{}, fmt.Errorf("encode tags: %w", err)
	}
	plugins, err := json.Marshal(wf.Plugins)
	if err != nil {
		return workflowRow{}, fmt.Errorf("encode plugins: %w", err)
	}
	return workflowRow{
		WorkflowUUID:   wf.WorkflowUUID,
		Name:           wf.Name,
		JobID:          wf.JobID,
		SubmittedBy:    wf.SubmittedBy,
		Backend:        wf.Backend,
		Pool:           wf.Pool,
		Priority:       string(wf.Priority),
		Status:         string(wf.Status),
		SubmitTime:     wf.SubmitTime,
		StartTime:      wf.StartTime,
		EndTime:        wf.EndTime,
		ExecTimeoutNS:  int64(wf.ExecTimeout),
		QueueTimeoutNS: int64(wf.QueueTimeout),
		ParentName:     wf.ParentName,
		ParentJobID:    wf.ParentJobID,
		AppUUID:        wf.AppUUID,
		AppVersion:     wf.AppVersion,
		Tags:           tags,
		Plugins:        plugins,
		CancelledBy:    wf.CancelledBy,
		FailureMessage: wf.FailureMessage,
		LogsURL:        wf.LogsURL,
		OutputsBaseURL: wf.OutputsBaseURL,
	}, nil
}

func rowToWorkflow(row workflowRow) (model.Workflow, error) {
	var tags map[string]string
	if len(row.Tags) > 0 {
		if err := json.Unmarshal(row.Tags, &tags); err != nil {
			return model.Workflow{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	var plugins map[string]any
	if len(row.Plugins) > 0 {
		if err := json.Unmarshal(row.Plugins, &plugins); err != nil {
			return model.Workflow{}, fmt.Errorf("decode plugins: %w", err)
		}
	}
	return model.Workflow{
		WorkflowUUID:   row.WorkflowUUID,
		Name:           row.Name,
		JobID:          row.JobID,
		SubmittedBy:    row.SubmittedBy,
		Backend:        row.Backend,
		Pool:           row.Pool,
		Priority:       model.Priority(row.Priority),
		Status:         model.WorkflowStatus(row.Status),
		SubmitTime:     row.SubmitTime,
		StartTime:      row.StartTime,
		EndTime:        row.EndTime,
		ExecTimeout:    time.Duration(row.ExecTimeoutNS),
		QueueTimeout:   time.Duration(row.QueueTimeoutNS),
		ParentName:     row.ParentName,
		ParentJobID:    row.ParentJobID,
		AppUUID:        row.AppUUID,
		AppVersion:     row.AppVersion,
		Tags:           tags,
		Plugins:        plugins,
		CancelledBy:    row.CancelledBy,
		FailureMessage: row.FailureMessage,
		LogsURL:        row.LogsURL,
		OutputsBaseURL: row.OutputsBaseURL,
	}, nil
}

// groupRow is the gorm row backing one model.TaskGroup. Spec, Upstream and
// Downstream are stored as JSON; Upstream/Downstream are sets in the model
// (map[string]struct{}) so they round-trip through a JSON string slice.
type groupRow struct {
	GroupUUID  string `gorm:"primaryKey"`
	WorkflowID string `gorm:"index"`
	Name       string
	Spec       []byte
	Status     string `gorm:"index"`
	Barrier    bool
	Upstream   []byte
	Downstream []byte
}

func (groupRow) TableName() string { return "task_groups" }

func groupToRow(g model.TaskGroup) (groupRow, error) {
	spec, err := json.Marshal(g.Spec)
	if err != nil {
		return groupRow{}, fmt.Errorf("encode group spec: %w", err)
	}
	upstream, err := json.Marshal(setToSlice(g.Upstream))
	if err != nil {
		return groupRow{}, fmt.Errorf("encode upstream: %w", err)
	}
	downstream, err := json.Marshal(setToSlice(g.Downstream))
	if err != nil {
		return groupRow{}, fmt.Errorf("encode downstream: %w", err)
	}
	return groupRow{
		GroupUUID:  g.GroupUUID,
		WorkflowID: g.WorkflowID,
		Name:       g.Name,
		Spec:       spec,
		Status:     string(g.Status),
		Barrier:    g.Barrier,
		Upstream:   upstream,
		Downstream: downstream,
	}, nil
}

func rowToGroup(row groupRow) (model.TaskGroup, error) {
	var spec map[string]any
	if len(row.Spec) > 0 {
		if err := json.Unmarshal(row.Spec, &spec); err != nil {
			return model.TaskGroup{}, fmt.Errorf("decode group spec: %w", err)
		}
	}
	upstream, err := decodeSet(row.Upstream)
	if err != nil {
		return model.TaskGroup{}, fmt.Errorf("decode upstream: %w", err)
	}
	downstream, err := decodeSet(row.Downstream)
	if err != nil {
		return model.TaskGroup{}, fmt.Errorf("decode downstream: %w", err)
	}
	return model.TaskGroup{
		GroupUUID:  row.GroupUUID,
		WorkflowID: row.WorkflowID,
		Name:       row.Name,
		Spec:       spec,
		Status:     model.GroupStatus(row.Status),
		Barrier:    row.Barrier,
		Upstream:   upstream,
		Downstream: downstream,
	}, nil
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func decodeSet(raw []byte) (map[string]struct{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

// taskRow is the gorm row backing one model.Task.
type taskRow struct {
	TaskUUID      string `gorm:"primaryKey"`
	TaskDBKey     string `gorm:"index"`
	WorkflowID    string `gorm:"index"`
	Name          string
	RetryID       int
	GroupName     string
	Status        string `gorm:"index"`
	NodeName      string
	StartTime     *time.Time
	EndTime       *time.Time
	LastHeartbeat *time.Time
	CPU           float64
	Memory        int64
	GPU           int64
	Storage       int64
	ExitActions   []byte
	Lead          bool
}

func (taskRow) TableName() string { return "tasks" }

func taskToRow(t model.Task) (taskRow, error) {
	exitActions, err := json.Marshal(t.ExitActions)
	if err != nil {
		return taskRow{}, fmt.Errorf("encode exit actions: %w", err)
	}
	return taskRow{
		TaskUUID:      t.TaskUUID,
		TaskDBKey:     t.TaskDBKey,
		WorkflowID:    t.WorkflowID,
		Name:          t.Name,
		RetryID:       t.RetryID,
		GroupName:     t.GroupName,
		Status:        string(t.Status),
		NodeName:      t.NodeName,
		StartTime:     t.StartTime,
		EndTime:       t.EndTime,
		LastHeartbeat: t.LastHeartbeat,
		CPU:           t.Resources.CPU,
		Memory:        t.Resources.Memory,
		GPU:           t.Resources.GPU,
		Storage:       t.Resources.Storage,
		ExitActions:   exitActions,
		Lead:          t.Lead,
	}, nil
}

func rowToTask(row taskRow) (model.Task, error) {
	var exitActions map[model.ExitActionTrigger]model.ExitAction
	if len(row.ExitActions) > 0 {
		if err := json.Unmarshal(row.ExitActions, &exitActions); err != nil {
			return model.Task{}, fmt.Errorf("decode exit actions: %w", err)
		}
	}
	return model.Task{
		TaskDBKey:     row.TaskDBKey,
		TaskUUID:      row.TaskUUID,
		WorkflowID:    row.WorkflowID,
		Name:          row.Name,
		RetryID:       row.RetryID,
		GroupName:     row.GroupName,
		Status:        model.TaskStatus(row.Status),
		NodeName:      row.NodeName,
		StartTime:     row.StartTime,
		EndTime:       row.EndTime,
		LastHeartbeat: row.LastHeartbeat,
		Resources: model.ResourceUsage{
			CPU:     row.CPU,
			Memory:  row.Memory,
			GPU:     row.GPU,
			Storage: row.Storage,
		},
		ExitActions: exitActions,
		Lead:        row.Lead,
	}, nil
}

// credentialRow is the gorm row backing one model.Credential. Plaintext
// is deliberately never persisted (see model.Credential's own doc comment);
// only Ciphertext and KEKID are stored, decryption happens in internal/secrets.
type credentialRow struct {
	Owner        string `gorm:"primaryKey;index:idx_cred_owner_name,priority:1"`
	Name         string `gorm:"primaryKey;index:idx_cred_owner_name,priority:2"`
	Kind         string
	BucketPrefix string
	Ciphertext   []byte
	KEKID        string
}

func (credentialRow) TableName() string { return "credentials" }

func credentialToRow(c model.Credential) credentialRow {
	return credentialRow{
		Owner:        c.Owner,
		Name:         c.Name,
		Kind:         string(c.Kind),
		BucketPrefix: c.BucketPrefix,
		Ciphertext:   c.Ciphertext,
		KEKID:        c.KEKID,
	}
}

func rowToCredential(row credentialRow) model.Credential {
	return model.Credential{
		Owner:        row.Owner,
		Name:         row.Name,
		Kind:         model.CredentialKind(row.Kind),
		BucketPrefix: row.BucketPrefix,
		Ciphertext:   row.Ciphertext,
		KEKID:        row.KEKID,
	}
}

// backendHeartbeatRow tracks the last heartbeat seen from each backend
// (§4.8), read back through model.Backend.Online.
type backendHeartbeatRow struct {
	BackendName   string `gorm:"primaryKey"`
	LastHeartbeat time.Time
}

func (backendHeartbeatRow) TableName() string { return "backend_heartbeats" }
