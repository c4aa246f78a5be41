// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osmo-project/osmo/internal/model"
)

type fakeCancelStore struct {
	cancelledBy map[string]string
	applyErr    error
	calls       int
}

func newFakeCancelStore() *fakeCancelStore {
	return &fakeCancelStore{cancelledBy: map[string]string{}}
}

func (f *fakeCancelStore) CompareAndSetCancelledBy(_ context.Context, workflowUUID, cancelledBy string) (bool, error) {
	f.calls++
	if f.applyErr != nil {
		return false, f.applyErr
	}
	if _, ok := f.cancelledBy[workflowUUID]; ok {
		return false, nil
	}
	f.cancelledBy[workflowUUID] = cancelledBy
	return true, nil
}

var _ = Describe("CanCancel", func() {
	It("allows canceling a running workflow without force", func() {
		Expect(CanCancel(model.WorkflowRunning, false)).To(BeTrue())
	})

	It("rejects canceling a finished workflow without force", func() {
		Expect(CanCancel(model.WorkflowCompleted, false)).To(BeFalse())
	})

	It("allows force-canceling a finished workflow", func() {
		Expect(CanCancel(model.WorkflowCompleted, true)).To(BeTrue())
	})
})

var _ = Describe("ResolveJobID", func() {
	It("returns the workflow's own id for a live workflow", func() {
		wf := model.Workflow{Name: "train", JobID: 7, Status: model.WorkflowRunning}
		Expect(ResolveJobID(wf, false)).To(Equal("train-7"))
	})

	It("mints a synthetic force-cancel id for an already-finished workflow", func() {
		wf := model.Workflow{WorkflowUUID: "uuid-1", Name: "train", JobID: 7, Status: model.WorkflowCompleted}
		id := ResolveJobID(wf, true)
		Expect(id).To(HaveSuffix("-force-cancel"))
		Expect(id).To(HavePrefix("uuid-1-"))
	})
})

var _ = Describe("Cancel", func() {
	It("rejects canceling an already-finished workflow without force", func() {
		store := newFakeCancelStore()
		wf := model.Workflow{WorkflowUUID: "uuid-1", Name: "train", JobID: 1, Status: model.WorkflowCompleted}

		_, err := Cancel(context.Background(), store, wf, CancelRequest{RequestedBy: "alice"})

		Expect(err).To(HaveOccurred())
		var notFinished *ErrAlreadyFinished
		Expect(err).To(BeAssignableToTypeOf(notFinished))
		Expect(store.calls).To(Equal(0))
	})

	It("applies the compare-and-set for a live workflow", func() {
		store := newFakeCancelStore()
		wf := model.Workflow{WorkflowUUID: "uuid-1", Name: "train", JobID: 1, Status: model.WorkflowRunning}

		jobID, err := Cancel(context.Background(), store, wf, CancelRequest{RequestedBy: "alice"})

		Expect(err).NotTo(HaveOccurred())
		Expect(jobID).To(Equal("train-1"))
		Expect(store.cancelledBy["uuid-1"]).To(Equal("alice"))
	})

	It("is idempotent when a second caller races an already-cancelled workflow", func() {
		store := newFakeCancelStore()
		wf := model.Workflow{WorkflowUUID: "uuid-1", Name: "train", JobID: 1, Status: model.WorkflowRunning}

		_, err := Cancel(context.Background(), store, wf, CancelRequest{RequestedBy: "alice"})
		Expect(err).NotTo(HaveOccurred())

		_, err = Cancel(context.Background(), store, wf, CancelRequest{RequestedBy: "bob"})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.cancelledBy["uuid-1"]).To(Equal("alice"))
	})

	It("force-cancels an already-finished workflow under a synthetic job id", func() {
		store := newFakeCancelStore()
		wf := model.Workflow{WorkflowUUID: "uuid-1", Name: "train", JobID: 1, Status: model.WorkflowFailed}

		jobID, err := Cancel(context.Background(), store, wf, CancelRequest{RequestedBy: "alice", Force: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(jobID).To(HaveSuffix("-force-cancel"))
		Expect(store.cancelledBy["uuid-1"]).To(Equal("alice"))
	})
})
