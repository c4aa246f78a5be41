// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/osmo-project/osmo/internal/scheduler"
)

// HTTPTransportConfig configures an HTTPTransport. TLS verification can be
// disabled for local development backends, the same escape hatch the
// cluster-gateway remote client offers for in-cluster dev loops.
type HTTPTransportConfig struct {
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// HTTPTransport implements Transport against a backend that exposes
// apply_cleanup_specs/get_resources/heartbeat as plain JSON HTTP
// endpoints (§4.8). Most real deployments run a Kubernetes backend
// instead (an in-cluster Transport talking to the apiserver directly),
// but the Backend Interface is defined as a wire contract so this
// transport lets a backend live entirely outside the cluster too.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport builds an HTTPTransport from cfg.
func NewHTTPTransport(cfg HTTPTransportConfig) *HTTPTransport {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // operator opt-in for dev backends
			},
		},
	}
}

type applyCleanupRequest struct {
	Cleanup   []scheduler.CleanupSpec `json:"cleanup"`
	Resources []any                   `json:"resources"`
}

// ApplyCleanupSpecs implements Transport.
func (t *HTTPTransport) ApplyCleanupSpecs(ctx context.Context, cleanup []scheduler.CleanupSpec, resources []any) error {
	body, err := json.Marshal(applyCleanupRequest{Cleanup: cleanup, Resources: resources})
	if err != nil {
		return fmt.Errorf("encode apply_cleanup_specs request: %w", err)
	}
	return t.post(ctx, "/apply_cleanup_specs", body, nil)
}

// ListNodes implements Transport.
func (t *HTTPTransport) ListNodes(ctx context.Context) ([]Node, error) {
	var nodes []Node
	if err := t.get(ctx, "/get_resources", &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Heartbeat implements Transport.
func (t *HTTPTransport) Heartbeat(ctx context.Context) (time.Time, error) {
	var resp struct {
		Now time.Time `json:"now"`
	}
	if err := t.get(ctx, "/heartbeat", &resp); err != nil {
		return time.Time{}, err
	}
	return resp.Now, nil
}

func (t *HTTPTransport) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, out)
}

func (t *HTTPTransport) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return err
	}
	return t.do(req, out)
}

func (t *HTTPTransport) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend http %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend http %s %s: read body: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend http %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend http %s %s: decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
