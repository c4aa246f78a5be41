// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps one backend's apply/list/watch calls in a circuit breaker
// so a wedged backend trips open rather than letting every caller queue up
// behind it (DOMAIN STACK: "Circuit breaker around Backend Interface calls
// ... so a wedged backend does not cascade into request-handling
// goroutines").
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker builds a Breaker named after the backend it guards, opening
// after 5 consecutive failures and probing again after 30s half-open.
func NewBreaker(backendName string) *Breaker {
	return &Breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        backendName,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})}
}

// Do runs fn through the breaker, translating an open-circuit rejection
// into a wrapped error the caller can distinguish from fn's own failures.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	v, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return zero, fmt.Errorf("backend %q circuit open: %w", b.cb.Name(), err)
		}
		return zero, err
	}
	return v.(T), nil
}

// DoCtx is Do for a context-taking call, short-circuiting immediately if
// ctx is already done rather than spending a breaker attempt on it.
func DoCtx[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return Do(b, func() (T, error) { return fn(ctx) })
}
