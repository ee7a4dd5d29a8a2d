// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memstore provides an in-memory implementation of the store
// interfaces.
//
// It is used by the tests of the packages above it and by demo mode, where
// the console runs without a database. Each Server holds its databases in
// nested maps guarded by a sync.RWMutex. Documents are copied on every read
// and write, so callers can never change stored data through a returned
// value.
//
// # Failure injection
//
// A Server can be marked unreachable (Dial fails with a network error) or
// unauthorized (the database listing fails with code 13, as it does for a
// user without the listDatabases privilege). Exact counts can be slowed down
// or made to fail to exercise the estimated-count fallback.
//
// # Queries
//
// Filters support top-level and dotted field paths compared for equality, the
// operators $eq, $ne, $gt, $gte, $lt, $lte, $in and $exists, and RegExp values
// matched against strings. Sort and projection work on top-level fields.
package memstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/united-manufacturing-hub/docconsole/pkg/serveraddr"
	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

// validateContext checks if the provided context is nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context cannot be nil")
	}

	return ctx.Err()
}

// Dialer hands out clients for the servers registered with AddServer.
// Servers are looked up by their normalized name, so "db" and
// "mongodb://db:27017" reach the same Server.
type Dialer struct {
	mu      sync.RWMutex
	servers map[string]*Server

	dials       atomic.Int64
	disconnects atomic.Int64
}

// NewDialer creates a Dialer without servers.
func NewDialer() *Dialer {
	return &Dialer{servers: make(map[string]*Server)}
}

// AddServer registers an empty server under the normalized form of address
// and returns it. Adding the same address twice returns the existing server.
func (d *Dialer) AddServer(address string) *Server {
	name, err := serveraddr.Name(address)
	if err != nil {
		name = address
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.servers[name]; ok {
		return s
	}

	s := NewServer()
	d.servers[name] = s

	return s
}

// Server returns the server registered for address.
func (d *Dialer) Server(address string) (*Server, bool) {
	name, err := serveraddr.Name(address)
	if err != nil {
		return nil, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.servers[name]

	return s, ok
}

// Dial returns a client for the server behind uri. Unknown and unreachable
// servers fail with a store.KindNetwork error.
func (d *Dialer) Dial(ctx context.Context, uri string) (store.Client, error) {
	if err := validateContext(ctx); err != nil {
		return nil, store.NewError(store.KindTimeout, err)
	}

	s, ok := d.Server(uri)
	if !ok || s.unreachable.Load() {
		return nil, &store.Error{
			Err:  errors.New("server selection error: no reachable servers"),
			Kind: store.KindNetwork,
		}
	}

	d.dials.Add(1)

	return &client{server: s, dialer: d}, nil
}

// OpenClients is the number of clients dialed and not yet disconnected.
func (d *Dialer) OpenClients() int64 {
	return d.dials.Load() - d.disconnects.Load()
}

// Dials is the number of successful Dial calls.
func (d *Dialer) Dials() int64 {
	return d.dials.Load()
}

type client struct {
	server *Server
	dialer *Dialer
	closed atomic.Bool
}

func (c *client) ServerStatus(ctx context.Context) (store.ServerStatus, error) {
	if err := validateContext(ctx); err != nil {
		return store.ServerStatus{}, store.NewError(store.KindTimeout, err)
	}

	return c.server.status()
}

func (c *client) ListCollections(ctx context.Context, database string) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, store.NewError(store.KindTimeout, err)
	}

	return c.server.collectionNames(database)
}

func (c *client) Collection(database, name string) store.Collection {
	return &collection{server: c.server, database: database, name: name}
}

func (c *client) Disconnect(_ context.Context) error {
	if c.closed.CompareAndSwap(false, true) {
		c.dialer.disconnects.Add(1)
	}

	return nil
}
