// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// backendOnlineWindow is the heartbeat staleness tolerance (§4.8): a
// backend is online if its last heartbeat fell within this window, or if
// maintenance mode is enabled for it.
const backendOnlineWindow = 2 * time.Minute

// SchedulerSettings names the scheduler implementation a Backend targets
// (GLOSSARY: "Cross-scheduler portability").
type SchedulerSettings struct {
	SchedulerType string // tagged variant, e.g. "KAI"
	SchedulerName string
}

// Backend is a single cluster/scheduler endpoint a Pool's workflows run
// against (§3).
type Backend struct {
	Name              string
	Scheduler         SchedulerSettings
	K8sNamespace      string
	NodeConditionsPfx string
	Tests             []string
	RouterAddress     string
	LastHeartbeat     time.Time
	EnableMaintenance bool
}

// Online reports whether the backend's heartbeat is within the tolerance
// window, or maintenance mode is masking staleness.
func (b Backend) Online(now time.Time) bool {
	if b.EnableMaintenance {
		return true
	}
	return now.Sub(b.LastHeartbeat) <= backendOnlineWindow
}
