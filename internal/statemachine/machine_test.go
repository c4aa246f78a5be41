// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osmo-project/osmo/internal/model"
)

type fakeStore struct {
	tasks           map[string][]model.TaskStatus
	groups          map[string][]model.GroupStatus
	groupStatuses   map[string]model.GroupStatus
	workflowStatus  map[string]model.WorkflowStatus
	cancelledBy     map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:          map[string][]model.TaskStatus{},
		groups:         map[string][]model.GroupStatus{},
		groupStatuses:  map[string]model.GroupStatus{},
		workflowStatus: map[string]model.WorkflowStatus{},
		cancelledBy:    map[string]string{},
	}
}

func (f *fakeStore) TaskStatuses(_ context.Context, groupUUID string) ([]model.TaskStatus, error) {
	return f.tasks[groupUUID], nil
}

func (f *fakeStore) GroupStatuses(_ context.Context, workflowUUID string) ([]model.GroupStatus, error) {
	return f.groups[workflowUUID], nil
}

func (f *fakeStore) SetGroupStatus(_ context.Context, groupUUID string, status model.GroupStatus) error {
	f.groupStatuses[groupUUID] = status
	return nil
}

func (f *fakeStore) SetWorkflowStatus(_ context.Context, workflowUUID string, status model.WorkflowStatus) error {
	f.workflowStatus[workflowUUID] = status
	return nil
}

func (f *fakeStore) CompareAndSetCancelledBy(_ context.Context, workflowUUID, cancelledBy string) (bool, error) {
	if _, ok := f.cancelledBy[workflowUUID]; ok {
		return false, nil
	}
	f.cancelledBy[workflowUUID] = cancelledBy
	return true, nil
}

var _ = Describe("Machine", func() {
	var (
		store    *fakeStore
		notifier *fakeNotifier
		optedIn  ProfileOptedIn
		machine  *Machine
	)

	BeforeEach(func() {
		store = newFakeStore()
		notifier = &fakeNotifier{}
		optedIn = func(string) bool { return true }
		machine = New(store, notifier, optedIn)
	})

	Describe("AdvanceGroup", func() {
		It("rolls up and persists the group's status from its tasks", func() {
			store.tasks["group-1"] = []model.TaskStatus{model.TaskCompleted, model.TaskRunning}

			status, err := machine.AdvanceGroup(context.Background(), "group-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(model.GroupRunning))
			Expect(store.groupStatuses["group-1"]).To(Equal(model.GroupRunning))
		})
	})

	Describe("AdvanceWorkflow", func() {
		It("rolls up, persists, and notifies once a workflow newly completes", func() {
			store.groups["wf-1"] = []model.GroupStatus{model.GroupCompleted, model.GroupCompleted}
			wf := model.Workflow{WorkflowUUID: "wf-1", Status: model.WorkflowRunning, SubmittedBy: "alice"}

			status, err := machine.AdvanceWorkflow(context.Background(), wf)

			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(model.WorkflowCompleted))
			Expect(store.workflowStatus["wf-1"]).To(Equal(model.WorkflowCompleted))
			Expect(notifier.notifications).To(HaveLen(1))
		})

		It("does not re-notify when the workflow was already finished", func() {
			store.groups["wf-1"] = []model.GroupStatus{model.GroupCompleted}
			wf := model.Workflow{WorkflowUUID: "wf-1", Status: model.WorkflowCompleted, SubmittedBy: "alice"}

			_, err := machine.AdvanceWorkflow(context.Background(), wf)

			Expect(err).NotTo(HaveOccurred())
			Expect(notifier.notifications).To(BeEmpty())
		})
	})

	Describe("CheckWorkflowTimeout", func() {
		It("persists and records a queue timeout breach", func() {
			submit := mustTime("2026-01-01T00:00:00Z")
			wf := model.Workflow{WorkflowUUID: "wf-1", SubmitTime: submit, QueueTimeout: time.Hour}
			machine.Now = func() time.Time { return submit.Add(2 * time.Hour) }

			result, err := machine.CheckWorkflowTimeout(context.Background(), wf, nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(QueueTimeout))
			Expect(store.workflowStatus["wf-1"]).To(Equal(model.WorkflowFailedQueueTimeout))
		})

		It("leaves status untouched when no timeout has been breached", func() {
			submit := mustTime("2026-01-01T00:00:00Z")
			wf := model.Workflow{WorkflowUUID: "wf-1", SubmitTime: submit, QueueTimeout: time.Hour}
			machine.Now = func() time.Time { return submit.Add(time.Minute) }

			result, err := machine.CheckWorkflowTimeout(context.Background(), wf, nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(NoTimeout))
			Expect(store.workflowStatus).NotTo(HaveKey("wf-1"))
		})
	})

	Describe("Cancel", func() {
		It("delegates to the package-level Cancel against its Store", func() {
			wf := model.Workflow{WorkflowUUID: "wf-1", Name: "train", JobID: 3, Status: model.WorkflowRunning}

			jobID, err := machine.Cancel(context.Background(), wf, CancelRequest{RequestedBy: "alice"})

			Expect(err).NotTo(HaveOccurred())
			Expect(jobID).To(Equal("train-3"))
			Expect(store.cancelledBy["wf-1"]).To(Equal("alice"))
		})
	})
})
