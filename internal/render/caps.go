// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package render

import "time"

// Caps bounds a render pool: how many isolated workers it keeps warm, how
// long a single render may run, and the virtual-memory ceiling installed on
// each worker process.
type Caps struct {
	Workers     int
	MaxTime     time.Duration
	MemoryLimit int64 // bytes; 0 means no cap
}

func (c Caps) equal(o Caps) bool {
	return c.Workers == o.Workers && c.MaxTime == o.MaxTime && c.MemoryLimit == o.MemoryLimit
}
