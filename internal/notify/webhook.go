// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify implements the (external) notifier service seam
// internal/statemachine.Notifier defines: delivering a terminal-transition
// notification (§4.6) to whatever transport a deployment wants. Email/chat
// transports themselves are out of scope (§1); this package only ships a
// webhook sink, the one transport generic enough not to be a specific
// chat/email integration.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/osmo-project/osmo/internal/statemachine"
)

// WebhookNotifier posts each Notification as a JSON object to URL.
type WebhookNotifier struct {
	URL     string
	Headers map[string]string
	client  *http.Client
}

// NewWebhookNotifier builds a WebhookNotifier posting to url.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:     url,
		Headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Notify implements statemachine.Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, n statemachine.Notification) error {
	if w.URL == "" {
		return nil
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook %q: status %d", w.URL, resp.StatusCode)
	}
	return nil
}
