// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osmo-project/osmo/internal/model"
)

var _ = Describe("RollupWorkflow", func() {
	It("is PENDING for no groups", func() {
		Expect(RollupWorkflow(nil)).To(Equal(model.WorkflowPending))
	})

	It("is COMPLETED when every group completed", func() {
		groups := []model.GroupStatus{model.GroupCompleted, model.GroupCompleted}
		Expect(RollupWorkflow(groups)).To(Equal(model.WorkflowCompleted))
	})

	It("is RUNNING when a group is still alive and another is running", func() {
		groups := []model.GroupStatus{model.GroupCompleted, model.GroupRunning}
		Expect(RollupWorkflow(groups)).To(Equal(model.WorkflowRunning))
	})

	It("is PENDING when groups are alive but none running yet", func() {
		groups := []model.GroupStatus{model.GroupPending, model.GroupPending}
		Expect(RollupWorkflow(groups)).To(Equal(model.WorkflowPending))
	})

	It("prefers FAILED_CANCELED over every other failure", func() {
		groups := []model.GroupStatus{model.GroupFailedServerError, model.GroupFailedCanceled, model.GroupFailed}
		Expect(RollupWorkflow(groups)).To(Equal(model.WorkflowFailedCanceled))
	})

	It("prefers FAILED_SERVER_ERROR over FAILED_EXEC_TIMEOUT", func() {
		groups := []model.GroupStatus{model.GroupFailedExecTimeout, model.GroupFailedServerError}
		Expect(RollupWorkflow(groups)).To(Equal(model.WorkflowFailedServerError))
	})

	It("prefers FAILED_EXEC_TIMEOUT over FAILED_QUEUE_TIMEOUT", func() {
		groups := []model.GroupStatus{model.GroupFailedQueueTimeout, model.GroupFailedExecTimeout}
		Expect(RollupWorkflow(groups)).To(Equal(model.WorkflowFailedExecTimeout))
	})

	It("prefers FAILED_QUEUE_TIMEOUT over a FAILED_UPSTREAM group", func() {
		groups := []model.GroupStatus{model.GroupFailedUpstream, model.GroupFailedQueueTimeout}
		Expect(RollupWorkflow(groups)).To(Equal(model.WorkflowFailedQueueTimeout))
	})

	It("maps a winning FAILED_UPSTREAM group to generic FAILED, ranked above plain FAILED", func() {
		groups := []model.GroupStatus{model.GroupFailed, model.GroupFailedUpstream}
		Expect(RollupWorkflow(groups)).To(Equal(model.WorkflowFailed))
	})

	It("is FAILED when the only failure is generic", func() {
		groups := []model.GroupStatus{model.GroupCompleted, model.GroupFailed}
		Expect(RollupWorkflow(groups)).To(Equal(model.WorkflowFailed))
	})
})
