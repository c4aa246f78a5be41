// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventSource struct {
	mu     sync.Mutex
	events [][]PodEvent // one slice of events per call to Watch
	calls  int
}

func (f *fakeEventSource) Watch(ctx context.Context, handle func(PodEvent)) error {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()

	if idx >= len(f.events) {
		<-ctx.Done()
		return ctx.Err()
	}
	for _, e := range f.events[idx] {
		handle(e)
	}
	return errors.New("source disconnected")
}

func TestListenerDispatchPreservesPerWorkflowOrder(t *testing.T) {
	source := &fakeEventSource{events: [][]PodEvent{{
		{WorkflowUUID: "wf-1", TaskUUID: "t1", Phase: PodPending},
		{WorkflowUUID: "wf-1", TaskUUID: "t1", Phase: PodRunning},
		{WorkflowUUID: "wf-1", TaskUUID: "t1", Phase: PodSucceeded},
	}}}
	listener := NewListener(source, nil)

	var mu sync.Mutex
	var seen []PodPhase
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = listener.Run(ctx, func(e PodEvent) {
			mu.Lock()
			seen = append(seen, e.Phase)
			if len(seen) == 3 {
				close(done)
			}
			mu.Unlock()
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []PodPhase{PodPending, PodRunning, PodSucceeded}, seen)
}

func TestListenerRunStopsOnContextCancel(t *testing.T) {
	source := &fakeEventSource{}
	listener := NewListener(source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := listener.Run(ctx, func(PodEvent) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
