// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osmo-project/osmo/internal/model"
)

var _ = Describe("DecideRetry", func() {
	It("never retries a task that hasn't failed", func() {
		Expect(DecideRetry(model.TaskRunning, false, true)).To(Equal(NoRetry))
		Expect(DecideRetry(model.TaskCompleted, false, true)).To(Equal(NoRetry))
	})

	It("never retries a canceled task, barrier or not", func() {
		Expect(DecideRetry(model.TaskFailedCanceled, false, true)).To(Equal(NoRetry))
		Expect(DecideRetry(model.TaskFailedCanceled, true, true)).To(Equal(NoRetry))
	})

	It("reruns the whole barrier group on any failure regardless of retryAllowed", func() {
		Expect(DecideRetry(model.TaskFailedExecTimeout, true, false)).To(Equal(RerunBarrierGroup))
	})

	It("retries a non-barrier task when the backend allows it", func() {
		Expect(DecideRetry(model.TaskFailedServerError, false, true)).To(Equal(RetryTask))
	})

	It("gives up on a non-barrier task when the backend disallows retry", func() {
		Expect(DecideRetry(model.TaskFailedServerError, false, false)).To(Equal(NoRetry))
	})
})

var _ = Describe("NextRetry", func() {
	It("carries forward identity but resets scheduling state", func() {
		start := mustTime("2026-01-01T00:00:00Z")
		prev := model.Task{
			TaskDBKey: "wf-group-task",
			TaskUUID:  "uuid-1",
			Name:      "task",
			GroupName: "group",
			RetryID:   1,
			Status:    model.TaskFailedServerError,
			NodeName:  "node-a",
			StartTime: &start,
			EndTime:   &start,
		}

		next := NextRetry(prev, "uuid-2")

		Expect(next.TaskDBKey).To(Equal(prev.TaskDBKey))
		Expect(next.Name).To(Equal(prev.Name))
		Expect(next.GroupName).To(Equal(prev.GroupName))
		Expect(next.TaskUUID).To(Equal("uuid-2"))
		Expect(next.RetryID).To(Equal(2))
		Expect(next.Status).To(Equal(model.TaskWaiting))
		Expect(next.NodeName).To(BeEmpty())
		Expect(next.StartTime).To(BeNil())
		Expect(next.EndTime).To(BeNil())
		Expect(next.LastHeartbeat).To(BeNil())
	})
})
