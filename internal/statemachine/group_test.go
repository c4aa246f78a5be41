// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osmo-project/osmo/internal/model"
)

var _ = Describe("RollupGroup", func() {
	It("is PENDING for an empty task list", func() {
		Expect(RollupGroup(nil)).To(Equal(model.GroupPending))
	})

	It("is PENDING when no task has started running yet", func() {
		statuses := []model.TaskStatus{model.TaskWaiting, model.TaskSubmitting}
		Expect(RollupGroup(statuses)).To(Equal(model.GroupPending))
	})

	It("is RUNNING when at least one task is RUNNING", func() {
		statuses := []model.TaskStatus{model.TaskRunning, model.TaskWaiting}
		Expect(RollupGroup(statuses)).To(Equal(model.GroupRunning))
	})

	It("is COMPLETED when every task is COMPLETED or RESCHEDULED", func() {
		statuses := []model.TaskStatus{model.TaskCompleted, model.TaskRescheduled, model.TaskCompleted}
		Expect(RollupGroup(statuses)).To(Equal(model.GroupCompleted))
	})

	It("is FAILED_CANCELED whenever any task was canceled, regardless of other failures", func() {
		statuses := []model.TaskStatus{model.TaskFailedCanceled, model.TaskFailedServerError}
		Expect(RollupGroup(statuses)).To(Equal(model.GroupFailedCanceled))
	})

	It("takes the specific reason when every failed task shares it", func() {
		statuses := []model.TaskStatus{model.TaskFailedExecTimeout, model.TaskFailedExecTimeout, model.TaskCompleted}
		Expect(RollupGroup(statuses)).To(Equal(model.GroupFailedExecTimeout))
	})

	It("falls back to generic FAILED when failure reasons differ", func() {
		statuses := []model.TaskStatus{model.TaskFailedExecTimeout, model.TaskFailedQueueTimeout}
		Expect(RollupGroup(statuses)).To(Equal(model.GroupFailed))
	})

	It("falls back to generic FAILED when the uniform reason has no group-level slot", func() {
		statuses := []model.TaskStatus{model.TaskFailedImagePull, model.TaskFailedImagePull}
		Expect(RollupGroup(statuses)).To(Equal(model.GroupFailed))
	})

	It("falls back to generic FAILED when every task uniformly failed upstream", func() {
		statuses := []model.TaskStatus{model.TaskFailedUpstream, model.TaskFailedUpstream}
		Expect(RollupGroup(statuses)).To(Equal(model.GroupFailed))
	})
})
