// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/osmo-project/osmo/internal/model"
)

var (
	terminalTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmo_statemachine_terminal_transitions_total",
			Help: "Total number of workflows that reached a terminal status, by status.",
		},
		[]string{"status"},
	)

	timeoutTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmo_statemachine_timeout_transitions_total",
			Help: "Total number of workflows driven terminal by a queue or exec timeout.",
		},
		[]string{"kind"},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmo_statemachine_retries_total",
			Help: "Total number of task retry decisions, by outcome.",
		},
		[]string{"decision"},
	)
)

func init() {
	prometheus.MustRegister(terminalTransitionsTotal, timeoutTransitionsTotal, retriesTotal)
}

// RecordTerminalTransition increments the terminal-status counter for a
// workflow's final status.
func RecordTerminalTransition(status model.WorkflowStatus) {
	terminalTransitionsTotal.WithLabelValues(string(status)).Inc()
}

// RecordTimeout increments the timeout counter for the given TimeoutResult.
// NoTimeout is not recorded.
func RecordTimeout(r TimeoutResult) {
	switch r {
	case QueueTimeout:
		timeoutTransitionsTotal.WithLabelValues("queue").Inc()
	case ExecTimeout:
		timeoutTransitionsTotal.WithLabelValues("exec").Inc()
	}
}

// RecordRetry increments the retry counter for the given RetryDecision.
// NoRetry is not recorded.
func RecordRetry(d RetryDecision) {
	switch d {
	case RetryTask:
		retriesTotal.WithLabelValues("retry_task").Inc()
	case RerunBarrierGroup:
		retriesTotal.WithLabelValues("rerun_barrier_group").Inc()
	}
}
