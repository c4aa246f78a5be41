// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	return store.New(db, nil)
}

func TestCreateWorkflowAssignsIncrementingJobID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wf1, err := s.CreateWorkflow(ctx, model.Workflow{WorkflowUUID: uuid.NewString(), Name: "train"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, wf1.JobID)

	wf2, err := s.CreateWorkflow(ctx, model.Workflow{WorkflowUUID: uuid.NewString(), Name: "train"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, wf2.JobID)

	other, err := s.CreateWorkflow(ctx, model.Workflow{WorkflowUUID: uuid.NewString(), Name: "eval"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, other.JobID)
}

func TestGetWorkflowNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetWorkflow(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, store.IsUserError(err))
}

func TestSetWorkflowStatusSetsStartAndEndTimeOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf, err := s.CreateWorkflow(ctx, model.Workflow{WorkflowUUID: uuid.NewString(), Name: "wf"})
	require.NoError(t, err)

	require.NoError(t, s.SetWorkflowStatus(ctx, wf.WorkflowUUID, model.WorkflowRunning))
	running, err := s.GetWorkflow(ctx, wf.WorkflowUUID)
	require.NoError(t, err)
	require.NotNil(t, running.StartTime)
	firstStart := *running.StartTime

	require.NoError(t, s.SetWorkflowStatus(ctx, wf.WorkflowUUID, model.WorkflowRunning))
	again, err := s.GetWorkflow(ctx, wf.WorkflowUUID)
	require.NoError(t, err)
	assert.Equal(t, firstStart, *again.StartTime)

	require.NoError(t, s.SetWorkflowStatus(ctx, wf.WorkflowUUID, model.WorkflowCompleted))
	done, err := s.GetWorkflow(ctx, wf.WorkflowUUID)
	require.NoError(t, err)
	assert.NotNil(t, done.EndTime)
	assert.Equal(t, model.WorkflowCompleted, done.Status)
}

func TestCompareAndSetCancelledByIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf, err := s.CreateWorkflow(ctx, model.Workflow{WorkflowUUID: uuid.NewString(), Name: "wf"})
	require.NoError(t, err)

	applied, err := s.CompareAndSetCancelledBy(ctx, wf.WorkflowUUID, "alice")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.CompareAndSetCancelledBy(ctx, wf.WorkflowUUID, "bob")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.GetWorkflow(ctx, wf.WorkflowUUID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.CancelledBy)
}

func TestGroupAndTaskStatusesRollUpLatestRetryOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, model.Workflow{WorkflowUUID: uuid.NewString(), Name: "wf"})
	require.NoError(t, err)

	group := model.TaskGroup{GroupUUID: uuid.NewString(), WorkflowID: wf.WorkflowUUID, Name: "g1", Status: model.GroupPending}
	require.NoError(t, s.CreateGroup(ctx, group))

	require.NoError(t, s.CreateTask(ctx, model.Task{
		TaskDBKey: "t1", TaskUUID: uuid.NewString(), WorkflowID: wf.WorkflowUUID,
		Name: "t1", GroupName: "g1", RetryID: 0, Status: model.TaskFailed,
	}))
	require.NoError(t, s.CreateTask(ctx, model.Task{
		TaskDBKey: "t1", TaskUUID: uuid.NewString(), WorkflowID: wf.WorkflowUUID,
		Name: "t1", GroupName: "g1", RetryID: 1, Status: model.TaskRunning,
	}))

	statuses, err := s.TaskStatuses(ctx, group.GroupUUID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, model.TaskRunning, statuses[0])

	require.NoError(t, s.SetGroupStatus(ctx, group.GroupUUID, model.GroupRunning))
	groupStatuses, err := s.GroupStatuses(ctx, wf.WorkflowUUID)
	require.NoError(t, err)
	assert.Equal(t, []model.GroupStatus{model.GroupRunning}, groupStatuses)
}

func TestPutCredentialThenCredentialsFor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCredential(ctx, model.Credential{
		Owner: "alice", Name: "registry-1", Kind: model.CredentialRegistry, Ciphertext: []byte("ct"), KEKID: "kek-1",
	}))
	require.NoError(t, s.PutCredential(ctx, model.Credential{
		Owner: "alice", Name: "registry-1", Kind: model.CredentialRegistry, Ciphertext: []byte("ct2"), KEKID: "kek-2",
	}))

	creds, err := s.CredentialsFor("alice")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, []byte("ct2"), creds[0].Ciphertext)

	none, err := s.CredentialsFor("bob")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteCredentialNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteCredential(context.Background(), "alice", "missing")
	require.Error(t, err)
	assert.True(t, store.IsUserError(err))
}

func TestSetLastHeartbeatUpsertsAndLastHeartbeatReadsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.LastHeartbeat(ctx, "be-1")
	require.NoError(t, err)
	assert.True(t, first.IsZero())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetLastHeartbeat(ctx, "be-1", now))
	got, err := s.LastHeartbeat(ctx, "be-1")
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), got.Unix())

	later := now.Add(5 * time.Minute)
	require.NoError(t, s.SetLastHeartbeat(ctx, "be-1", later))
	got2, err := s.LastHeartbeat(ctx, "be-1")
	require.NoError(t, err)
	assert.Equal(t, later.Unix(), got2.Unix())
}
