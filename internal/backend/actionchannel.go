// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher sends one action_channel request (§4.8 `action_channel`).
type Publisher interface {
	Publish(ctx context.Context, req ActionRequest) error
}

// Subscriber receives action_channel requests published for one task.
// Next blocks until a request arrives, the request's own TTL lapses
// (ErrActionExpired), or ctx is canceled.
type Subscriber interface {
	Next(ctx context.Context) (ActionRequest, error)
	Close() error
}

// ErrActionExpired is returned by Subscriber.Next when a request's TTL
// elapsed before it was claimed (§4.8 "Requests TTL = total timeout").
var ErrActionExpired = fmt.Errorf("action_channel: request expired before delivery")

// ActionChannelFactory builds a Publisher/Subscriber pair scoped to a
// single task_uuid.
type ActionChannelFactory interface {
	ActionChannel(ctx context.Context, taskUUID string) (Publisher, Subscriber)
}

// RedisClient is the narrow slice of a Redis client the action channel
// needs: a value stored with its own expiry (the request, so a late
// subscriber can detect its TTL lapsed) plus a pub/sub notification that a
// new value is ready, matching go-redis's idiomatic split between
// SetEx/Get and Publish/Subscribe (DOMAIN STACK: "redis/go-redis/v9 ...
// the action channel (§4.8 action_channel) pub/sub").
type RedisClient interface {
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string) (PubSubReceiver, error)
}

// PubSubReceiver is the receive half of a Redis subscription.
type PubSubReceiver interface {
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

func actionKey(taskUUID string) string     { return "osmo:action:" + taskUUID }
func actionChannel(taskUUID string) string { return "osmo:action:" + taskUUID + ":notify" }

// RedisActionChannels is an ActionChannelFactory backed by RedisClient.
type RedisActionChannels struct {
	Redis RedisClient
}

// ActionChannel implements ActionChannelFactory.
func (f RedisActionChannels) ActionChannel(_ context.Context, taskUUID string) (Publisher, Subscriber) {
	return &redisPublisher{redis: f.Redis, taskUUID: taskUUID},
		&redisSubscriber{redis: f.Redis, taskUUID: taskUUID}
}

type redisPublisher struct {
	redis    RedisClient
	taskUUID string
}

// Publish stores the request keyed by task_uuid with its own TTL, then
// notifies any subscriber that a request is ready. Storing before
// notifying means a subscriber woken by the notification always finds the
// key already set.
func (p *redisPublisher) Publish(ctx context.Context, req ActionRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("action_channel publish: marshal: %w", err)
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := p.redis.SetEx(ctx, actionKey(p.taskUUID), body, ttl); err != nil {
		return fmt.Errorf("action_channel publish: store: %w", err)
	}
	if err := p.redis.Publish(ctx, actionChannel(p.taskUUID), []byte(p.taskUUID)); err != nil {
		return fmt.Errorf("action_channel publish: notify: %w", err)
	}
	return nil
}

type redisSubscriber struct {
	redis    RedisClient
	taskUUID string
	sub      PubSubReceiver
}

// Next waits for the next notification and reads back the stored request.
// If the key has already expired by the time Next reads it, the request's
// TTL lapsed before delivery and ErrActionExpired is returned rather than
// a stale/zero-value ActionRequest.
func (s *redisSubscriber) Next(ctx context.Context) (ActionRequest, error) {
	if s.sub == nil {
		sub, err := s.redis.Subscribe(ctx, actionChannel(s.taskUUID))
		if err != nil {
			return ActionRequest{}, fmt.Errorf("action_channel subscribe: %w", err)
		}
		s.sub = sub
	}

	if _, err := s.sub.Receive(ctx); err != nil {
		return ActionRequest{}, fmt.Errorf("action_channel receive: %w", err)
	}

	body, ok, err := s.redis.Get(ctx, actionKey(s.taskUUID))
	if err != nil {
		return ActionRequest{}, fmt.Errorf("action_channel read: %w", err)
	}
	if !ok {
		return ActionRequest{}, ErrActionExpired
	}

	var req ActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ActionRequest{}, fmt.Errorf("action_channel unmarshal: %w", err)
	}
	return req, nil
}

func (s *redisSubscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Close()
}
