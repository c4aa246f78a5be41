// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// GoRedisClient adapts *redis.Client to the narrow RedisClient interface
// RedisActionChannels depends on.
type GoRedisClient struct {
	*redis.Client
}

// SetEx implements RedisClient.
func (c GoRedisClient) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// Get implements RedisClient, mapping redis.Nil to ok=false rather than an
// error so callers distinguish "expired/never set" from a real failure.
func (c GoRedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Publish implements RedisClient.
func (c GoRedisClient) Publish(ctx context.Context, channel string, message []byte) error {
	return c.Client.Publish(ctx, channel, message).Err()
}

// Subscribe implements RedisClient.
func (c GoRedisClient) Subscribe(ctx context.Context, channel string) (PubSubReceiver, error) {
	return goRedisPubSub{ps: c.Client.Subscribe(ctx, channel)}, nil
}

type goRedisPubSub struct {
	ps *redis.PubSub
}

func (p goRedisPubSub) Receive(ctx context.Context) ([]byte, error) {
	msg, err := p.ps.ReceiveMessage(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(msg.Payload), nil
}

func (p goRedisPubSub) Close() error {
	return p.ps.Close()
}
