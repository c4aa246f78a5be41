// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osmo-project/osmo/internal/model"
)

type fakeNotifier struct {
	notifications []Notification
	err           error
}

func (f *fakeNotifier) Notify(_ context.Context, n Notification) error {
	if f.err != nil {
		return f.err
	}
	f.notifications = append(f.notifications, n)
	return nil
}

var _ = Describe("ExitActionRunner", func() {
	var (
		notifier     *fakeNotifier
		cancelledWF  []string
		cancel       CancelFunc
		runner       ExitActionRunner
		workflowUUID string
	)

	BeforeEach(func() {
		notifier = &fakeNotifier{}
		cancelledWF = nil
		cancel = func(_ context.Context, wf string) error {
			cancelledWF = append(cancelledWF, wf)
			return nil
		}
		runner = ExitActionRunner{Notifier: notifier, Cancel: cancel}
		workflowUUID = "wf-uuid-1"
	})

	It("is a no-op for a task that hasn't reached a terminal status", func() {
		task := model.Task{
			Name:   "preprocess",
			Status: model.TaskRunning,
			ExitActions: map[model.ExitActionTrigger]model.ExitAction{
				model.ExitOnCompleted: {Notify: true},
			},
		}

		Expect(runner.Run(context.Background(), task, workflowUUID)).To(Succeed())
		Expect(notifier.notifications).To(BeEmpty())
	})

	It("is a no-op when the task carries no action for its trigger", func() {
		task := model.Task{
			Name:   "preprocess",
			Status: model.TaskCompleted,
			ExitActions: map[model.ExitActionTrigger]model.ExitAction{
				model.ExitOnFailed: {Notify: true},
			},
		}

		Expect(runner.Run(context.Background(), task, workflowUUID)).To(Succeed())
		Expect(notifier.notifications).To(BeEmpty())
	})

	It("notifies on COMPLETED when the action opts in", func() {
		task := model.Task{
			Name:   "preprocess",
			Status: model.TaskCompleted,
			ExitActions: map[model.ExitActionTrigger]model.ExitAction{
				model.ExitOnCompleted: {Notify: true},
			},
		}

		Expect(runner.Run(context.Background(), task, workflowUUID)).To(Succeed())
		Expect(notifier.notifications).To(HaveLen(1))
		Expect(notifier.notifications[0].TaskName).To(Equal("preprocess"))
		Expect(cancelledWF).To(BeEmpty())
	})

	It("treats any failed terminal status as the FAILED trigger", func() {
		task := model.Task{
			Name:   "train",
			Status: model.TaskFailedExecTimeout,
			ExitActions: map[model.ExitActionTrigger]model.ExitAction{
				model.ExitOnFailed: {CascadeCancel: true},
			},
		}

		Expect(runner.Run(context.Background(), task, workflowUUID)).To(Succeed())
		Expect(cancelledWF).To(ConsistOf(workflowUUID))
	})

	It("cascades cancel on FAILED when configured", func() {
		task := model.Task{
			Name:   "train",
			Status: model.TaskFailed,
			ExitActions: map[model.ExitActionTrigger]model.ExitAction{
				model.ExitOnFailed: {Notify: true, CascadeCancel: true},
			},
		}

		Expect(runner.Run(context.Background(), task, workflowUUID)).To(Succeed())
		Expect(notifier.notifications).To(HaveLen(1))
		Expect(cancelledWF).To(ConsistOf(workflowUUID))
	})

	It("propagates a notifier error without cascading cancel", func() {
		notifier.err = context.DeadlineExceeded
		task := model.Task{
			Name:   "train",
			Status: model.TaskFailed,
			ExitActions: map[model.ExitActionTrigger]model.ExitAction{
				model.ExitOnFailed: {Notify: true, CascadeCancel: true},
			},
		}

		err := runner.Run(context.Background(), task, workflowUUID)

		Expect(err).To(HaveOccurred())
		Expect(cancelledWF).To(BeEmpty())
	})
})
