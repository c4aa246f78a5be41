// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"
	"time"

	retry "github.com/avast/retry-go"

	"github.com/osmo-project/osmo/internal/scheduler"
)

// Transport is the actual wire access a Client needs from one backend: a
// way to delete-then-apply a resource list and a way to list current
// nodes. A concrete Transport talks to whatever API the backend exposes
// (Kubernetes apiserver, a scheduler-native REST API, ...); this package
// never assumes which, the same way internal/scheduler never assumes a
// concrete Applier.
type Transport interface {
	ApplyCleanupSpecs(ctx context.Context, cleanup []scheduler.CleanupSpec, resources []any) error
	ListNodes(ctx context.Context) ([]Node, error)
	Heartbeat(ctx context.Context) (time.Time, error)
}

// Backend is the full contract (§4.8) the Scheduler Bridge and State
// Machine depend on. ApplyCleanupSpecs's signature matches
// scheduler.Applier exactly so a *Client satisfies both.
type Backend interface {
	ApplyCleanupSpecs(ctx context.Context, cleanup []scheduler.CleanupSpec, resources []any) error
	GetResources(ctx context.Context) (GetResourcesResult, error)
	ActionChannel(ctx context.Context, taskUUID string) (Publisher, Subscriber)
}

// Client implements Backend against a Transport, wrapping apply/list calls
// in a circuit breaker and a bounded retry so transient backend errors
// don't immediately propagate to callers (DOMAIN STACK: avast/retry-go
// for "the Database error class (§7) and registry/credential HTTP calls",
// the same retry-on-transient-error shape applies here).
type Client struct {
	Name      string
	Transport Transport
	Channel   ActionChannelFactory

	breaker *Breaker
}

// NewClient builds a Client for one named backend.
func NewClient(name string, transport Transport, channel ActionChannelFactory) *Client {
	return &Client{Name: name, Transport: transport, Channel: channel, breaker: NewBreaker(name)}
}

// ApplyCleanupSpecs implements scheduler.Applier and backend.Backend: it
// makes up to 3 attempts in all, with exponential backoff between them,
// inside the circuit breaker.
func (c *Client) ApplyCleanupSpecs(ctx context.Context, cleanup []scheduler.CleanupSpec, resources []any) error {
	_, err := DoCtx(ctx, c.breaker, func(ctx context.Context) (struct{}, error) {
		err := retry.Do(
			func() error { return c.Transport.ApplyCleanupSpecs(ctx, cleanup, resources) },
			retry.Attempts(3),
			retry.Context(ctx),
		)
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("backend %q apply_cleanup_specs: %w", c.Name, err)
	}
	return nil
}

// GetResources implements Backend's get_resources, breaker-wrapped but not
// retried (a snapshot read the caller will simply re-poll).
func (c *Client) GetResources(ctx context.Context) (GetResourcesResult, error) {
	nodes, err := DoCtx(ctx, c.breaker, c.Transport.ListNodes)
	if err != nil {
		return GetResourcesResult{}, fmt.Errorf("backend %q get_resources: %w", c.Name, err)
	}
	return GetResourcesResult{Nodes: nodes}, nil
}

// ActionChannel implements Backend's action_channel: it hands back a
// Publisher/Subscriber pair scoped to taskUUID, built by whatever
// ActionChannelFactory the Client was constructed with (the Redis-backed
// implementation in actionchannel.go, typically).
func (c *Client) ActionChannel(ctx context.Context, taskUUID string) (Publisher, Subscriber) {
	return c.Channel.ActionChannel(ctx, taskUUID)
}
