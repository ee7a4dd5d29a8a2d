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

// Package registry keeps one connection per configured server and hands out
// collection accessors. A server that cannot be reached or whose credentials
// are rejected is recorded as failed and never affects the others.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/docconsole/pkg/logger"
	"github.com/united-manufacturing-hub/docconsole/pkg/metrics"
	"github.com/united-manufacturing-hub/docconsole/pkg/serveraddr"
	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

var (
	// ErrServerNotFound is returned for names that match no configured server.
	ErrServerNotFound = errors.New("server does not exist")
	// ErrNotFound is returned by Collection when the server, database or
	// collection cannot be used.
	ErrNotFound = errors.New("collection not found")
)

const releaseTimeout = 10 * time.Second

// ServerConnection is the registry entry of one server. Entries are never
// modified; a state change replaces the entry.
type ServerConnection struct {
	Name   string
	URI    string
	client store.Client
	err    *ConnectionError
}

// Active reports whether the server is usable.
func (c *ServerConnection) Active() bool {
	return c.client != nil
}

// Err returns the reason the server is unusable, nil when it is active.
func (c *ServerConnection) Err() *ConnectionError {
	return c.err
}

// Options tune a Registry.
type Options struct {
	// CountTimeout is the exact count budget of the accessors handed out.
	CountTimeout time.Duration
	// StatsCacheTTL is how long collection statistics are reused. Zero
	// disables caching.
	StatsCacheTTL time.Duration
}

// Registry holds the connections to all configured servers.
type Registry struct {
	dialer store.Dialer
	opts   Options
	log    *zap.SugaredLogger
	stats  *cache.Cache

	mu      sync.RWMutex
	servers map[string]*ServerConnection
	// configured holds the names of the last Load minus removed ones.
	// Connection attempts that settle for other names are discarded.
	configured map[string]struct{}
}

// New creates an empty registry that connects through dialer.
func New(dialer store.Dialer, opts Options) *Registry {
	r := &Registry{
		dialer:  dialer,
		opts:    opts,
		log:     logger.For(logger.ComponentRegistry),
		servers:    make(map[string]*ServerConnection),
		configured: make(map[string]struct{}),
	}

	if opts.StatsCacheTTL > 0 {
		r.stats = cache.New(opts.StatsCacheTTL, 2*opts.StatsCacheTTL)
	}

	return r
}

// Load connects to every address in addresses. Connected servers are kept,
// failed and new ones get a fresh attempt, and servers that are no longer
// configured are dropped. The attempts run concurrently and Load returns once
// all of them have settled. Failures are recorded in the entries, never
// returned.
func (r *Registry) Load(ctx context.Context, addresses []string) {
	type target struct {
		name, uri string
		err       error
	}

	targets := make(map[string]target, len(addresses))

	for _, address := range addresses {
		if strings.TrimSpace(address) == "" {
			continue
		}

		uri, name, err := serveraddr.Normalize(address)
		if err != nil {
			name = strings.TrimSpace(address)
		}

		targets[name] = target{name: name, uri: uri, err: err}
	}

	var stale []*ServerConnection

	r.mu.Lock()

	r.configured = make(map[string]struct{}, len(targets))
	for name := range targets {
		r.configured[name] = struct{}{}
	}

	for name, conn := range r.servers {
		if _, ok := targets[name]; !ok {
			delete(r.servers, name)
			stale = append(stale, conn)
		}
	}

	pending := make([]target, 0, len(targets))

	for name, t := range targets {
		if conn, ok := r.servers[name]; ok && conn.Active() {
			continue
		}

		if t.err != nil {
			r.servers[name] = &ServerConnection{Name: name, URI: t.uri, err: newConnectionError(t.err, errorNameConnection)}

			continue
		}

		pending = append(pending, t)
	}

	r.mu.Unlock()

	for _, conn := range stale {
		r.log.Infow("Server no longer configured", "server", conn.Name)
		r.release(conn)
	}

	var g errgroup.Group

	for _, t := range pending {
		g.Go(func() error {
			r.connect(ctx, t.name, t.uri)

			return nil
		})
	}

	_ = g.Wait()

	r.publishStates()
}

func (r *Registry) connect(ctx context.Context, name, uri string) {
	client, err := r.dialer.Dial(ctx, uri)
	if err != nil {
		r.log.Warnw("Failed to connect", "server", name, "error", err)
		r.put(&ServerConnection{Name: name, URI: uri, err: newConnectionError(err, errorNameConnection)})

		return
	}

	conn := &ServerConnection{Name: name, URI: uri, client: client}
	if !r.putActive(conn) {
		return
	}

	r.log.Infow("Connected", "server", name)

	// The listing needs the listDatabases privilege, so it tells whether the
	// credentials are good enough for the console.
	if _, err := client.ServerStatus(ctx); err != nil {
		if !store.IsKind(err, store.KindAuthorization) {
			r.log.Warnw("Server status probe failed", "server", name, "error", err)

			return
		}

		r.log.Warnw("Not authorized, marking server as failed", "server", name, "error", err)

		failed := &ServerConnection{Name: name, URI: uri, err: newConnectionError(err, errorNameConnection)}
		if r.swap(conn, failed) {
			r.release(conn)
		}
	}
}

func (r *Registry) put(conn *ServerConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isConfigured(conn.Name) {
		return
	}

	if current, ok := r.servers[conn.Name]; ok && current.Active() {
		return
	}

	r.servers[conn.Name] = conn
}

// putActive stores conn unless another attempt already connected the same
// server or the server was removed meanwhile. In both cases conn is released
// and false returned.
func (r *Registry) putActive(conn *ServerConnection) bool {
	r.mu.Lock()

	current, ok := r.servers[conn.Name]
	if (ok && current.Active()) || !r.isConfigured(conn.Name) {
		r.mu.Unlock()
		r.release(conn)

		return false
	}

	r.servers[conn.Name] = conn
	r.mu.Unlock()

	return true
}

// swap replaces old with next if old is still the current entry.
func (r *Registry) swap(old, next *ServerConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.servers[old.Name] != old || !r.isConfigured(old.Name) {
		return false
	}

	r.servers[old.Name] = next

	return true
}

// isConfigured must be called with r.mu held.
func (r *Registry) isConfigured(name string) bool {
	_, ok := r.configured[name]

	return ok
}

func (r *Registry) release(conn *ServerConnection) {
	if conn.client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := conn.client.Disconnect(ctx); err != nil {
		r.log.Debugw("Failed to disconnect", "server", conn.Name, "error", err)
	}
}

// Lookup returns the entry named name, trying name with the default port
// when there is no exact match.
func (r *Registry) Lookup(name string) (*ServerConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if conn, ok := r.servers[name]; ok {
		return conn, nil
	}

	if conn, ok := r.servers[serveraddr.WithDefaultPort(name)]; ok {
		return conn, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrServerNotFound, name)
}

// Remove drops the entry named name and releases its client in the
// background. A connection attempt still running for name is discarded once it
// settles. Removing an unknown server does nothing else.
func (r *Registry) Remove(name string) {
	r.mu.Lock()

	delete(r.configured, name)
	delete(r.configured, serveraddr.WithDefaultPort(name))

	conn, ok := r.servers[name]
	if !ok {
		name = serveraddr.WithDefaultPort(name)
		conn, ok = r.servers[name]
	}

	if ok {
		delete(r.servers, name)
	}

	r.mu.Unlock()

	if !ok {
		return
	}

	r.log.Infow("Server removed", "server", name)
	r.forgetStats(name)
	r.publishStates()

	go r.release(conn)
}

// Close releases every client. The registry is empty afterwards.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	conns := r.servers
	r.servers = make(map[string]*ServerConnection)
	r.configured = make(map[string]struct{})
	r.mu.Unlock()

	var errs []error

	for _, conn := range conns {
		if conn.client == nil {
			continue
		}

		if err := conn.client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect from %s: %w", conn.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (r *Registry) snapshot() []*ServerConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*ServerConnection, 0, len(r.servers))
	for _, conn := range r.servers {
		conns = append(conns, conn)
	}

	return conns
}

func (r *Registry) publishStates() {
	var active, failed int

	for _, conn := range r.snapshot() {
		if conn.Active() {
			active++
		} else {
			failed++
		}
	}

	metrics.SetServerStates(active, failed)
}
