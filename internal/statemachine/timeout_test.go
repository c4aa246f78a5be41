// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osmo-project/osmo/internal/model"
)

var _ = Describe("CheckTimeout", func() {
	submit := mustTime("2026-01-01T00:00:00Z")

	It("reports no timeout when under both limits", func() {
		wf := model.Workflow{SubmitTime: submit, QueueTimeout: time.Hour, ExecTimeout: time.Hour}
		now := submit.Add(10 * time.Minute)
		Expect(CheckTimeout(wf, nil, now)).To(Equal(NoTimeout))
	})

	It("breaches queue_timeout before the workflow ever ran", func() {
		wf := model.Workflow{SubmitTime: submit, QueueTimeout: time.Hour}
		now := submit.Add(2 * time.Hour)
		Expect(CheckTimeout(wf, nil, now)).To(Equal(QueueTimeout))
	})

	It("does not apply queue_timeout once a runningSince instant is known", func() {
		wf := model.Workflow{SubmitTime: submit, QueueTimeout: time.Hour}
		runningSince := submit.Add(30 * time.Minute)
		now := submit.Add(3 * time.Hour)
		Expect(CheckTimeout(wf, &runningSince, now)).To(Equal(NoTimeout))
	})

	It("breaches exec_timeout measured from the first RUNNING instant", func() {
		wf := model.Workflow{SubmitTime: submit, ExecTimeout: time.Hour}
		runningSince := submit.Add(30 * time.Minute)
		now := runningSince.Add(2 * time.Hour)
		Expect(CheckTimeout(wf, &runningSince, now)).To(Equal(ExecTimeout))
	})

	It("treats a zero timeout as disabled", func() {
		wf := model.Workflow{SubmitTime: submit}
		now := submit.Add(100 * time.Hour)
		Expect(CheckTimeout(wf, nil, now)).To(Equal(NoTimeout))
	})
})

var _ = Describe("TimeoutResult.Status", func() {
	It("maps QueueTimeout to FAILED_QUEUE_TIMEOUT", func() {
		status, ok := QueueTimeout.Status()
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(model.WorkflowFailedQueueTimeout))
	})

	It("maps ExecTimeout to FAILED_EXEC_TIMEOUT", func() {
		status, ok := ExecTimeout.Status()
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(model.WorkflowFailedExecTimeout))
	})

	It("has no status for NoTimeout", func() {
		_, ok := NoTimeout.Status()
		Expect(ok).To(BeFalse())
	})
})
