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

package registry

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/docconsole/pkg/collection"
	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

// ListServers describes every configured server, sorted by name. Summaries of
// connected servers are gathered concurrently; a server whose summary fails is
// listed with a ServerError.
func (r *Registry) ListServers(ctx context.Context) []ServerEntry {
	conns := r.snapshot()
	entries := make([]ServerEntry, len(conns))

	var g errgroup.Group

	for i, conn := range conns {
		if !conn.Active() {
			entries[i] = ServerEntry{Name: conn.Name, Error: conn.err}

			continue
		}

		g.Go(func() error {
			status, err := conn.client.ServerStatus(ctx)
			if err != nil {
				r.log.Debugw("Server summary failed", "server", conn.Name, "error", err)
				summaryErr := newConnectionError(err, errorNameServer)
				summaryErr.Name = errorNameServer
				entries[i] = ServerEntry{Name: conn.Name, Error: summaryErr}

				return nil
			}

			entry := ServerEntry{Name: conn.Name, Size: status.TotalSize, Databases: make([]DatabaseSummary, 0, len(status.Databases))}
			for _, db := range status.Databases {
				entry.Databases = append(entry.Databases, DatabaseSummary{Name: db.Name, Size: db.SizeOnDisk, Empty: db.Empty})
			}

			entries[i] = entry

			return nil
		})
	}

	_ = g.Wait()

	SortEntries(entries)

	return entries
}

// SortEntries sorts by name in ascending byte order. Entries without a name
// go last.
func SortEntries(entries []ServerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Name, entries[j].Name

		if a == "" || b == "" {
			return a != "" && b == ""
		}

		return a < b
	})
}

// ListDatabases lists the databases of a server. Failed servers and failing
// listings yield an empty list.
func (r *Registry) ListDatabases(ctx context.Context, server string) ([]DatabaseSummary, error) {
	conn, err := r.Lookup(server)
	if err != nil {
		return nil, err
	}

	databases := []DatabaseSummary{}

	if !conn.Active() {
		return databases, nil
	}

	status, err := conn.client.ServerStatus(ctx)
	if err != nil {
		r.log.Debugw("Listing databases failed", "server", conn.Name, "error", err)

		return databases, nil
	}

	for _, db := range status.Databases {
		databases = append(databases, DatabaseSummary{Name: db.Name, Size: db.SizeOnDisk, Empty: db.Empty})
	}

	return databases, nil
}

// ListCollections describes the collections of a database, sorted by name.
// Failed servers and failing listings yield an empty list. Results are reused
// for the configured statistics TTL.
func (r *Registry) ListCollections(ctx context.Context, server, database string) ([]collection.Stats, error) {
	conn, err := r.Lookup(server)
	if err != nil {
		return nil, err
	}

	if !conn.Active() {
		return []collection.Stats{}, nil
	}

	key := statsKey(conn.Name, database)

	if r.stats != nil {
		if cached, ok := r.stats.Get(key); ok {
			return slices.Clone(cached.([]collection.Stats)), nil
		}
	}

	names, err := conn.client.ListCollections(ctx, database)
	if err != nil {
		r.log.Debugw("Listing collections failed", "server", conn.Name, "database", database, "error", err)

		return []collection.Stats{}, nil
	}

	sort.Strings(names)

	list := make([]collection.Stats, 0, len(names))
	for _, name := range names {
		list = append(list, r.accessor(conn, database, name).Stats(ctx))
	}

	if r.stats != nil {
		r.stats.SetDefault(key, slices.Clone(list))
	}

	return list, nil
}

// Collection returns an accessor for server/database/name. It fails with
// ErrNotFound unless the server is connected and both the database and the
// collection exist.
func (r *Registry) Collection(ctx context.Context, server, database, name string) (*collection.Accessor, error) {
	conn, err := r.Lookup(server)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	if !conn.Active() {
		return nil, fmt.Errorf("%w: server %s is not connected", ErrNotFound, conn.Name)
	}

	status, err := conn.client.ServerStatus(ctx)
	if err != nil {
		r.log.Debugw("Listing databases failed", "server", conn.Name, "error", err)

		return nil, fmt.Errorf("%w: %s.%s.%s", ErrNotFound, conn.Name, database, name)
	}

	if !slices.ContainsFunc(status.Databases, func(db store.DatabaseInfo) bool { return db.Name == database }) {
		return nil, fmt.Errorf("%w: %s.%s.%s", ErrNotFound, conn.Name, database, name)
	}

	names, err := conn.client.ListCollections(ctx, database)
	if err != nil || !slices.Contains(names, name) {
		if err != nil {
			r.log.Debugw("Listing collections failed", "server", conn.Name, "database", database, "error", err)
		}

		return nil, fmt.Errorf("%w: %s.%s.%s", ErrNotFound, conn.Name, database, name)
	}

	return r.accessor(conn, database, name), nil
}

func (r *Registry) accessor(conn *ServerConnection, database, name string) *collection.Accessor {
	return collection.New(conn.client.Collection(database, name), r.opts.CountTimeout)
}

func statsKey(server, database string) string {
	return server + "/" + database
}

func (r *Registry) forgetStats(server string) {
	if r.stats == nil {
		return
	}

	prefix := server + "/"

	for key := range r.stats.Items() {
		if strings.HasPrefix(key, prefix) {
			r.stats.Delete(key)
		}
	}
}
