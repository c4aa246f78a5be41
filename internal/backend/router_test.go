// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSConnPair spins up a local websocket server and returns the client
// side connection, for exercising RouterPool against a real *websocket.Conn.
func newWSConnPair(t *testing.T) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRouterPoolDispatchRoundRobins(t *testing.T) {
	pool := NewRouterPool(nil)
	connA := newWSConnPair(t)
	connB := newWSConnPair(t)

	pool.Register("conn-a", "router-1", connA)
	pool.Register("conn-b", "router-1", connB)

	assert.Equal(t, 2, pool.Count("router-1"))

	require.NoError(t, pool.Dispatch("router-1", []byte("hello-1")))
	require.NoError(t, pool.Dispatch("router-1", []byte("hello-2")))
	require.NoError(t, pool.Dispatch("router-1", []byte("hello-3")))
}

func TestRouterPoolDispatchNoConnections(t *testing.T) {
	pool := NewRouterPool(nil)

	err := pool.Dispatch("router-missing", []byte("x"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "router-missing")
}

func TestRouterPoolUnregisterRemovesConnection(t *testing.T) {
	pool := NewRouterPool(nil)
	conn := newWSConnPair(t)

	pool.Register("conn-a", "router-1", conn)
	require.Equal(t, 1, pool.Count("router-1"))

	pool.Unregister("router-1", "conn-a")
	assert.Equal(t, 0, pool.Count("router-1"))
}
