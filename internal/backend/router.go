// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RouterConnection is one live websocket connection to a backend's router,
// the transport action_channel's exec/port-forward payloads ride over
// once a request names a router_address (§4.8, DOMAIN STACK "gorilla/
// websocket ... action_channel's exec/port-forward transport between
// router and backend").
type RouterConnection struct {
	ID            string
	RouterAddress string
	Conn          *websocket.Conn
	ConnectedAt   time.Time
	LastSeen      time.Time

	mu sync.Mutex
}

// Send writes an action payload to the router over this connection.
func (rc *RouterConnection) Send(payload []byte) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if err := rc.Conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("router connection %q: write: %w", rc.ID, err)
	}
	return nil
}

func (rc *RouterConnection) touch() {
	rc.mu.Lock()
	rc.LastSeen = time.Now()
	rc.mu.Unlock()
}

// Close closes the underlying connection.
func (rc *RouterConnection) Close() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.Conn.Close()
}

// RouterPool tracks every live connection per router_address, supporting
// more than one connection per address for HA and round-robining requests
// across them (adapted from the same pattern a per-plane connection
// registry uses to fan traffic across redundant agent replicas).
type RouterPool struct {
	mu         sync.RWMutex
	byAddress  map[string][]*RouterConnection
	roundRobin map[string]int
	logger     *slog.Logger
}

// NewRouterPool builds an empty RouterPool.
func NewRouterPool(logger *slog.Logger) *RouterPool {
	return &RouterPool{
		byAddress:  map[string][]*RouterConnection{},
		roundRobin: map[string]int{},
		logger:     logger,
	}
}

// Register adds conn under routerAddress and returns its RouterConnection.
func (p *RouterPool) Register(id, routerAddress string, conn *websocket.Conn) *RouterConnection {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	rc := &RouterConnection{ID: id, RouterAddress: routerAddress, Conn: conn, ConnectedAt: now, LastSeen: now}
	p.byAddress[routerAddress] = append(p.byAddress[routerAddress], rc)
	if p.logger != nil {
		p.logger.Info("router connected", "router_address", routerAddress, "connection_id", id,
			"connections_for_router", len(p.byAddress[routerAddress]))
	}
	return rc
}

// Unregister removes the connection with id from routerAddress's pool.
func (p *RouterPool) Unregister(routerAddress, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns := p.byAddress[routerAddress]
	for i, c := range conns {
		if c.ID != id {
			continue
		}
		p.byAddress[routerAddress] = append(conns[:i], conns[i+1:]...)
		if len(p.byAddress[routerAddress]) == 0 {
			delete(p.byAddress, routerAddress)
			delete(p.roundRobin, routerAddress)
		}
		return
	}
}

// Dispatch picks the next connection for routerAddress (round-robin) and
// sends the action payload over it.
func (p *RouterPool) Dispatch(routerAddress string, payload []byte) error {
	p.mu.Lock()
	conns := p.byAddress[routerAddress]
	if len(conns) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("router pool: no connections for router %q", routerAddress)
	}
	idx := p.roundRobin[routerAddress] % len(conns)
	p.roundRobin[routerAddress] = (idx + 1) % len(conns)
	rc := conns[idx]
	p.mu.Unlock()

	rc.touch()
	return rc.Send(payload)
}

// Count returns the number of connections registered for routerAddress.
func (p *RouterPool) Count(routerAddress string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byAddress[routerAddress])
}
