// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"time"

	"github.com/osmo-project/osmo/internal/model"
)

// ResolveTimeouts fills missing exec/queue timeouts from the pool defaults
// and clamps the result to the pool/service maxima (§4.3 step 6). Limits
// carries no service-level default, so a timeout that both the spec and
// the pool leave unset stays zero.
func ResolveTimeouts(spec model.TimeoutSpec, limits Limits) (exec, queue time.Duration) {
	exec = spec.ExecTimeout
	if exec <= 0 {
		exec = limits.PoolDefaultExecTimeout
	}
	if max := effectiveMax(limits.PoolMaxExecTimeout, limits.ServiceMaxExecTimeout); max > 0 && exec > max {
		exec = max
	}

	queue = spec.QueueTimeout
	if queue <= 0 {
		queue = limits.PoolDefaultQueueTimeout
	}
	if max := effectiveMax(limits.PoolMaxQueueTimeout, limits.ServiceMaxQueueTimeout); max > 0 && queue > max {
		queue = max
	}

	return exec, queue
}

// effectiveMax is the tighter of the pool and service ceilings; zero means
// "no ceiling at that level".
func effectiveMax(poolMax, serviceMax time.Duration) time.Duration {
	switch {
	case poolMax <= 0:
		return serviceMax
	case serviceMax <= 0:
		return poolMax
	case poolMax < serviceMax:
		return poolMax
	default:
		return serviceMax
	}
}
