// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"log/slog"
	"time"
)

// EventSource is the raw stream a backend's watch/list API delivers;
// Watch blocks until ctx is canceled or the source is exhausted, pushing
// every event it sees to handle.
type EventSource interface {
	Watch(ctx context.Context, handle func(PodEvent)) error
}

// Listener runs one EventSource's `listen_events` loop (§4.8), preserving
// per-workflow event order by handing every event to a single per-workflow
// worker goroutine rather than fanning out — cross-workflow order is
// explicitly not guaranteed (§5 "Per-workflow event order is preserved
// within a single listener; cross-workflow order is not").
type Listener struct {
	Source EventSource
	Logger *slog.Logger

	workflows map[string]chan PodEvent
}

// NewListener builds a Listener over source.
func NewListener(source EventSource, logger *slog.Logger) *Listener {
	return &Listener{Source: source, Logger: logger, workflows: map[string]chan PodEvent{}}
}

// Run dispatches events to handle, reconnecting the underlying source on
// transient errors with a capped exponential backoff, until ctx is
// canceled.
func (l *Listener) Run(ctx context.Context, handle func(PodEvent)) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		err := l.Source.Watch(ctx, func(e PodEvent) { l.dispatch(e, handle) })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			backoff = time.Second
			continue
		}
		if l.Logger != nil {
			l.Logger.Warn("event listener reconnecting", "error", err, "backoff", backoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// dispatch routes e to its workflow's dedicated worker, starting one on
// first sight. Each worker's channel is buffered, so a slow handler does
// not hold up delivery to other workflows until its own buffer is full;
// once it is, dispatch blocks.
func (l *Listener) dispatch(e PodEvent, handle func(PodEvent)) {
	ch, ok := l.workflows[e.WorkflowUUID]
	if !ok {
		ch = make(chan PodEvent, 256)
		l.workflows[e.WorkflowUUID] = ch
		go func() {
			for ev := range ch {
				handle(ev)
			}
		}()
	}
	ch <- e
}
