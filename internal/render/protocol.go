// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// workRequest is sent from the parent to a worker over its stdin pipe.
type workRequest struct {
	Template  string         `json:"template"`
	Variables map[string]any `json:"variables"`
}

// workResponse is sent from a worker back to the parent over stdout.
// ErrKind is empty on success; otherwise "memory" or "eval" (ServeWorker
// only sends "eval"). Timeouts and out-of-memory crashes are detected by
// the parent and never arrive as a response.
type workResponse struct {
	Result   string `json:"result,omitempty"`
	ErrKind  string `json:"errKind,omitempty"`
	ErrMsg   string `json:"errMsg,omitempty"`
}

const (
	errKindMemory = "memory"
	errKindEval   = "eval"
)

// writeFrame writes a 4-byte big-endian length prefix followed by the
// JSON-encoded payload. Framing lets templates containing arbitrary
// embedded newlines cross the pipe safely.
func writeFrame(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed JSON payload and decodes it into v.
func readFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(header[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read frame payload: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal frame: %w", err)
	}
	return nil
}

const readyByte = 0x01

// writeReady signals worker readiness over the handshake pipe: a single
// sentinel byte written once, before the request/response loop starts.
func writeReady(w io.Writer) error {
	_, err := w.Write([]byte{readyByte})
	return err
}

// waitReady blocks until the worker's single readiness byte arrives.
func waitReady(r io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	if b[0] != readyByte {
		return fmt.Errorf("unexpected readiness byte: %x", b[0])
	}
	return nil
}
