// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string][]byte
	subs   map[string]*fakePubSub
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string][]byte{}, subs: map[string]*fakePubSub{}}
}

func (f *fakeRedis) SetEx(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message []byte) error {
	if sub, ok := f.subs[channel]; ok {
		sub.messages <- message
	}
	return nil
}

func (f *fakeRedis) Subscribe(_ context.Context, channel string) (PubSubReceiver, error) {
	sub := &fakePubSub{messages: make(chan []byte, 4), ready: make(chan struct{})}
	f.subs[channel] = sub
	close(sub.ready)
	return sub, nil
}

type fakePubSub struct {
	messages chan []byte
	ready    chan struct{}
}

func (p *fakePubSub) Receive(ctx context.Context) ([]byte, error) {
	select {
	case m := <-p.messages:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *fakePubSub) Close() error {
	close(p.messages)
	return nil
}

// subscribed blocks a test goroutine until the channel's subscription has
// been registered in the fake, so a subsequent Publish is guaranteed to be
// delivered rather than dropped.
func (f *fakeRedis) subscribed(channel string) <-chan struct{} {
	for {
		if sub, ok := f.subs[channel]; ok {
			return sub.ready
		}
		time.Sleep(time.Millisecond)
	}
}

func TestActionChannelPublishThenReceive(t *testing.T) {
	redis := newFakeRedis()
	factory := RedisActionChannels{Redis: redis}
	ctx := context.Background()

	pub, sub := factory.ActionChannel(ctx, "task-1")
	defer sub.Close()

	type result struct {
		req ActionRequest
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		req, err := sub.Next(ctx)
		resultCh <- result{req, err}
	}()

	<-redis.subscribed(actionChannel("task-1"))

	req := ActionRequest{TaskUUID: "task-1", Action: ActionExec, Key: "sess-1", TTL: time.Minute}
	require.NoError(t, pub.Publish(ctx, req))

	select {
	case r := <-resultCh:
		require.NoError(t, r.err)
		assert.Equal(t, req.TaskUUID, r.req.TaskUUID)
		assert.Equal(t, req.Action, r.req.Action)
		assert.Equal(t, req.Key, r.req.Key)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber to receive the request")
	}
}

func TestActionChannelExpiredRequestIsReported(t *testing.T) {
	redis := newFakeRedis()
	factory := RedisActionChannels{Redis: redis}
	ctx := context.Background()

	_, sub := factory.ActionChannel(ctx, "task-2")
	defer sub.Close()

	type result struct {
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		_, err := sub.Next(ctx)
		resultCh <- result{err}
	}()

	<-redis.subscribed(actionChannel("task-2"))

	// Notify without ever storing the key: simulates the request's TTL
	// having already lapsed by the time the subscriber looks it up.
	require.NoError(t, redis.Publish(ctx, actionChannel("task-2"), []byte("task-2")))

	select {
	case r := <-resultCh:
		assert.ErrorIs(t, r.err, ErrActionExpired)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber")
	}
}
