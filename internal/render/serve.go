// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// IsWorkerProcess reports whether this process was spawned as a render
// worker (via spawnWorker) rather than started normally. main() checks this
// before running the ordinary CLI entrypoint.
func IsWorkerProcess() bool {
	return os.Getenv(workerSelfExecEnv) != ""
}

// ServeWorker installs the process's memory cap, signals readiness, and
// then serves render requests from stdin until stdin closes or the process
// is killed. It returns nil when stdin closes, and an error if installing
// the memory cap, the handshake, or a frame read or write fails.
func ServeWorker() error {
	if limit, err := strconv.ParseInt(os.Getenv(workerMemLimitEnv), 10, 64); err == nil && limit > 0 {
		if err := installMemoryLimit(limit); err != nil {
			// Surface the failure as a ready-handshake error by not
			// writing the ready byte; the parent's waitReady sees EOF
			// and treats this worker as failed to spawn.
			return err
		}
	}

	if err := writeReady(os.Stdout); err != nil {
		return err
	}

	engine := NewEngine()
	for {
		var req workRequest
		if err := readFrame(os.Stdin, &req); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		resp := evalRequest(engine, req)
		if err := writeFrame(os.Stdout, resp); err != nil {
			return err
		}
	}
}

func evalRequest(engine *Engine, req workRequest) workResponse {
	rendered, err := engine.renderString(req.Template, req.Variables)
	if err != nil {
		return workResponse{ErrKind: errKindEval, ErrMsg: err.Error()}
	}
	if rendered == omitSentinel {
		return workResponse{Result: ""}
	}
	if s, ok := rendered.(string); ok {
		return workResponse{Result: s}
	}
	// Non-string standalone results (numbers, bools, structures) are
	// stringified for the wire; callers needing the native type render
	// the template as a structured value directly via Engine.Render
	// in-process rather than through the sandboxed pool.
	return workResponse{Result: toDisplayString(rendered)}
}

// toDisplayString renders a standalone CEL result for the wire when it is
// not already a string: numbers and bools print directly, anything else is
// JSON-marshaled.
func toDisplayString(v any) string {
	switch t := v.(type) {
	case int64, float64, bool:
		return fmt.Sprintf("%v", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// installMemoryLimit installs an OS-level virtual-memory cap for this
// process via RLIMIT_AS. Allocation past the cap fails the mmap/brk
// syscall underneath the Go runtime, which reports "fatal error: out of
// memory" on stderr and exits — the parent pool recognizes that signature
// in the worker's captured stderr and turns it into a MemoryError instead
// of treating the exit as an ordinary crash.
func installMemoryLimit(bytes int64) error {
	limit := unix.Rlimit{Cur: uint64(bytes), Max: uint64(bytes)}
	return unix.Setrlimit(unix.RLIMIT_AS, &limit)
}
