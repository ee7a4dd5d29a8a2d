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

package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

type collectionData struct {
	docs []bson.D
}

// Server is one in-memory database server.
type Server struct {
	mu        sync.RWMutex
	databases map[string]map[string]*collectionData

	unreachable  atomic.Bool
	unauthorized atomic.Bool

	countMu    sync.Mutex
	countDelay time.Duration
	countErr   error

	exactCounts     atomic.Int64
	estimatedCounts atomic.Int64
	writes          atomic.Int64
}

// NewServer creates an empty server.
func NewServer() *Server {
	return &Server{databases: make(map[string]map[string]*collectionData)}
}

// SetUnreachable makes future dials fail.
func (s *Server) SetUnreachable(v bool) { s.unreachable.Store(v) }

// SetUnauthorized makes the database listing fail with an authorization error.
func (s *Server) SetUnauthorized(v bool) { s.unauthorized.Store(v) }

// SetCountDelay delays exact counts by d. The delay honors the caller's context.
func (s *Server) SetCountDelay(d time.Duration) {
	s.countMu.Lock()
	defer s.countMu.Unlock()

	s.countDelay = d
}

// SetCountError makes exact counts fail with err.
func (s *Server) SetCountError(err error) {
	s.countMu.Lock()
	defer s.countMu.Unlock()

	s.countErr = err
}

// ExactCounts is the number of CountDocuments calls so far.
func (s *Server) ExactCounts() int64 { return s.exactCounts.Load() }

// EstimatedCounts is the number of EstimatedDocumentCount calls so far.
func (s *Server) EstimatedCounts() int64 { return s.estimatedCounts.Load() }

// Writes is the number of update, replace and delete calls so far.
func (s *Server) Writes() int64 { return s.writes.Load() }

// CreateCollection creates an empty collection, and its database when needed.
// Creating an existing collection is a no-op.
func (s *Server) CreateCollection(database, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collectionLocked(database, name)
}

// Insert stores copies of docs. Documents without an _id get a new ObjectID.
// The stored _id values are returned in order.
func (s *Server) Insert(database, name string, docs ...bson.D) []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collectionLocked(database, name)
	ids := make([]any, 0, len(docs))

	for _, doc := range docs {
		stored := copyDoc(doc)

		id, ok := lookup(stored, "_id")
		if !ok {
			id = bson.NewObjectID()
			stored = append(bson.D{{Key: "_id", Value: id}}, stored...)
		}

		coll.docs = append(coll.docs, stored)
		ids = append(ids, id)
	}

	return ids
}

// Documents returns copies of every document of a collection in store order.
func (s *Server) Documents(database, name string) []bson.D {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.databases[database][name]
	if !ok {
		return []bson.D{}
	}

	out := make([]bson.D, 0, len(coll.docs))

	for _, doc := range coll.docs {
		out = append(out, copyDoc(doc))
	}

	return out
}

func (s *Server) collectionLocked(database, name string) *collectionData {
	colls, ok := s.databases[database]
	if !ok {
		colls = make(map[string]*collectionData)
		s.databases[database] = colls
	}

	coll, ok := colls[name]
	if !ok {
		coll = &collectionData{docs: []bson.D{}}
		colls[name] = coll
	}

	return coll
}

func (s *Server) status() (store.ServerStatus, error) {
	if s.unauthorized.Load() {
		return store.ServerStatus{}, &store.Error{
			Err:  errors.New("not authorized on admin to execute command { listDatabases: 1 }"),
			Kind: store.KindAuthorization,
			Code: 13,
			Name: "Unauthorized",
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := store.ServerStatus{Databases: []store.DatabaseInfo{}}

	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		var size int64

		empty := true

		for _, coll := range s.databases[name] {
			for _, doc := range coll.docs {
				size += docSize(doc)
				empty = false
			}
		}

		status.Databases = append(status.Databases, store.DatabaseInfo{Name: name, SizeOnDisk: size, Empty: empty})
		status.TotalSize += size
	}

	return status, nil
}

func (s *Server) collectionNames(database string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.databases[database]))
	for name := range s.databases[database] {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

func (s *Server) waitCount(ctx context.Context) error {
	s.countMu.Lock()
	delay, countErr := s.countDelay, s.countErr
	s.countMu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return store.NewError(store.KindTimeout, fmt.Errorf("count interrupted: %w", ctx.Err()))
		case <-timer.C:
		}
	}

	return countErr
}

func docSize(doc bson.D) int64 {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return 0
	}

	return int64(len(raw))
}
