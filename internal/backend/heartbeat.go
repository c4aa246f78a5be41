// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/osmo-project/osmo/internal/model"
)

// HeartbeatStore persists the last-observed heartbeat instant for a
// backend so model.Backend.Online can be evaluated without re-polling the
// backend itself on every admission/quota check.
type HeartbeatStore interface {
	SetLastHeartbeat(ctx context.Context, backendName string, at time.Time) error
}

// Reaper polls every registered backend's Transport.Heartbeat on a fixed
// interval and records it, implementing §4.8's "Backends heartbeat every
// 2 min" as a background loop (§5 "long-lived background loops: ...
// heartbeat reaper").
type Reaper struct {
	Backends map[string]Transport
	Store    HeartbeatStore
	Interval time.Duration
	Logger   *slog.Logger
}

// NewReaper builds a Reaper polling every 2 minutes, matching the
// heartbeat cadence §4.8 names.
func NewReaper(backends map[string]Transport, store HeartbeatStore, logger *slog.Logger) *Reaper {
	return &Reaper{Backends: backends, Store: store, Interval: 2 * time.Minute, Logger: logger}
}

// Run polls every backend once per Interval until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollAll(ctx)
		}
	}
}

func (r *Reaper) pollAll(ctx context.Context) {
	for name, t := range r.Backends {
		at, err := t.Heartbeat(ctx)
		if err != nil {
			if r.Logger != nil {
				r.Logger.Warn("backend heartbeat failed", "backend", name, "error", err)
			}
			continue
		}
		if err := r.Store.SetLastHeartbeat(ctx, name, at); err != nil && r.Logger != nil {
			r.Logger.Error("persist backend heartbeat failed", "backend", name, "error", err)
		}
	}
}

// Online reports whether b is reachable: either its heartbeat fell within
// the tolerance window, or maintenance mode masks staleness (§4.8).
func Online(b model.Backend, now time.Time) bool {
	return b.Online(now)
}

// RequireOnline returns an error naming b if it is not currently online,
// the guard the Scheduler Bridge and State Machine apply before issuing
// any backend call.
func RequireOnline(b model.Backend, now time.Time) error {
	if !b.Online(now) {
		return fmt.Errorf("backend %q is offline (last heartbeat %s)", b.Name, b.LastHeartbeat)
	}
	return nil
}
