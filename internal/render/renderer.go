// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"context"
	"fmt"
	"sync"
)

// Renderer is the process-wide entrypoint for sandboxed template expansion.
// It holds a single underlying Pool that is reconfigured transparently the
// first time Render is called with a different Caps than the one currently
// running.
type Renderer struct {
	mu   sync.Mutex
	pool *Pool
}

// NewRenderer returns a Renderer with no pool started; the first Render
// call spawns one sized to the caps it is given.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render merges defaultValues under explicit (explicit wins), reconfigures
// the singleton pool if caps changed, and expands templateText against the
// merged variables.
func (r *Renderer) Render(ctx context.Context, templateText string, defaultValues, explicit map[string]any, caps Caps) (string, error) {
	variables := MergeDefaults(defaultValues, explicit)

	r.mu.Lock()
	pool := r.pool
	if pool == nil {
		p, err := NewPool(ctx, caps)
		if err != nil {
			r.mu.Unlock()
			return "", fmt.Errorf("start render pool: %w", err)
		}
		r.pool = p
		pool = p
	}
	r.mu.Unlock()

	if err := pool.Reconfigure(ctx, caps); err != nil {
		return "", fmt.Errorf("reconfigure render pool: %w", err)
	}

	return pool.Render(ctx, templateText, variables)
}

// Close shuts down the underlying pool, if one was ever started.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}
