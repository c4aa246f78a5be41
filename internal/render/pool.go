// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// maxCrashRetries bounds how many times the pool will replace a worker that
// died mid-call (broken pipe or unexpected exit) before giving up and
// surfacing a server error to the caller.
const maxCrashRetries = 3

// Pool is a fixed-size pool of long-lived isolated workers. Render acquires
// a worker, uses it, and always releases it back to the pool, even on
// error — the teacher's "bounded queue: acquire -> use -> release" pattern
// applied to OS processes instead of goroutines.
type Pool struct {
	mu   sync.Mutex
	caps Caps
	idle chan *worker
}

// NewPool starts Caps.Workers isolated child processes up front.
func NewPool(ctx context.Context, caps Caps) (*Pool, error) {
	p := &Pool{}
	if err := p.reconfigure(ctx, caps); err != nil {
		return nil, err
	}
	return p, nil
}

// Reconfigure swaps the pool's workers for a fresh set matching newCaps.
// Renderer.Render calls this transparently whenever the caller's caps differ from
// the currently running configuration, so the pool behaves as a singleton
// that reconfigures itself on first call after caps change.
func (p *Pool) Reconfigure(ctx context.Context, newCaps Caps) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.caps.equal(newCaps) {
		return nil
	}
	return p.reconfigure(ctx, newCaps)
}

// reconfigure must be called with p.mu held, except from NewPool before the
// pool is published.
func (p *Pool) reconfigure(ctx context.Context, caps Caps) error {
	if p.idle != nil {
		close(p.idle)
		for w := range p.idle {
			_ = w.kill()
		}
	}

	idle := make(chan *worker, caps.Workers)
	for i := 0; i < caps.Workers; i++ {
		w, err := spawnWorker(ctx, caps.MemoryLimit)
		if err != nil {
			for existing := range idle {
				_ = existing.kill()
			}
			return fmt.Errorf("spawn render worker %d/%d: %w", i+1, caps.Workers, err)
		}
		idle <- w
	}

	p.idle = idle
	p.caps = caps
	return nil
}

// Render expands templateText against variables, honoring the pool's
// current caps. default-values handling (merging under explicit --set
// variables) is the caller's responsibility (engine.Submit and
// Renderer.Render both apply MergeDefaults first) — Render evaluates
// exactly the variables it is given.
func (p *Pool) Render(ctx context.Context, templateText string, variables map[string]any) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxCrashRetries; attempt++ {
		result, err := p.renderOnce(ctx, templateText, variables)
		if err == nil {
			return result, nil
		}

		var timeoutErr *TimeoutError
		var memErr *MemoryError
		if errors.As(err, &timeoutErr) || errors.As(err, &memErr) {
			return "", err
		}

		lastErr = err
	}
	return "", &CrashError{Retries: maxCrashRetries, Cause: lastErr}
}

// renderOnce acquires one worker, evaluates the template with the pool's
// max-time cap enforced, and always returns the worker to the pool or
// replaces it with a fresh one if it died.
func (p *Pool) renderOnce(ctx context.Context, templateText string, variables map[string]any) (string, error) {
	p.mu.Lock()
	idle := p.idle
	caps := p.caps
	p.mu.Unlock()

	w, ok := <-idle
	if !ok {
		return "", errors.New("render pool is shutting down")
	}

	type callResult struct {
		resp workResponse
		err  error
	}
	done := make(chan callResult, 1)
	go func() {
		resp, err := w.call(workRequest{Template: templateText, Variables: variables})
		done <- callResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			oom := w.crashedWithOOM()

			replacement, spawnErr := spawnWorker(ctx, caps.MemoryLimit)
			if spawnErr != nil {
				return "", fmt.Errorf("respawn crashed worker: %w", spawnErr)
			}
			idle <- replacement

			if oom {
				return "", &MemoryError{Limit: fmt.Sprintf("%d bytes", caps.MemoryLimit)}
			}
			return "", fmt.Errorf("worker call failed: %w", res.err)
		}

		idle <- w

		if res.resp.ErrKind != "" {
			switch res.resp.ErrKind {
			case errKindMemory:
				return "", &MemoryError{Limit: res.resp.ErrMsg}
			default:
				return "", errors.New(res.resp.ErrMsg)
			}
		}
		return res.resp.Result, nil

	case <-time.After(caps.MaxTime):
		_ = w.kill()
		replacement, spawnErr := spawnWorker(ctx, caps.MemoryLimit)
		if spawnErr != nil {
			return "", fmt.Errorf("respawn timed-out worker: %w", spawnErr)
		}
		idle <- replacement
		return "", &TimeoutError{MaxTime: caps.MaxTime.String()}
	}
}

// Close kills every idle worker. In-flight calls are left to their own
// timeout handling.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idle == nil {
		return
	}
	close(p.idle)
	for w := range p.idle {
		_ = w.kill()
	}
	p.idle = nil
}
