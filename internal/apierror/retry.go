// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package apierror

import (
	"context"
	"math"
	"math/rand"
	"time"

	retry "github.com/avast/retry-go"
)

// databaseRetryAttempts is §7's "retried up to 5x" for the Database error
// class (unique-constraint races).
const databaseRetryAttempts = 5

// databaseBackoff implements §7's literal backoff formula for the
// Database error class: 2^min(retry,5) + U(0,5) seconds.
func databaseBackoff(n uint, _ error, _ *retry.Config) time.Duration {
	exp := n
	if exp > databaseRetryAttempts {
		exp = databaseRetryAttempts
	}
	base := math.Pow(2, float64(exp))
	jitter := rand.Float64() * 5 //nolint:gosec // backoff jitter, not security-sensitive
	return time.Duration((base + jitter) * float64(time.Second))
}

// RetryDatabase retries fn up to databaseRetryAttempts times with §7's
// Database-class backoff, for callers issuing direct writes outside
// internal/store's own transactions (e.g. registry/config-store races).
// fn's error is retried unconditionally; wrap fn so it only returns an
// error for retryable races, not for errors that should fail fast.
func RetryDatabase(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Attempts(databaseRetryAttempts),
		retry.Context(ctx),
		retry.DelayType(databaseBackoff),
	)
}
