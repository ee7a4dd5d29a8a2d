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
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

type collection struct {
	server   *Server
	database string
	name     string
}

func (c *collection) Name() string {
	return c.name
}

// docsLocked returns the stored documents, nil when the collection does not
// exist. The caller holds the server lock.
func (c *collection) docsLocked() *collectionData {
	return c.server.databases[c.database][c.name]
}

func (c *collection) FindOne(ctx context.Context, filter bson.D) (bson.D, error) {
	if err := validateContext(ctx); err != nil {
		return nil, store.NewError(store.KindTimeout, err)
	}

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()

	idx, err := c.firstMatchLocked(filter)
	if err != nil {
		return nil, err
	}

	if idx < 0 {
		return nil, store.ErrNoDocument
	}

	return copyDoc(c.docsLocked().docs[idx]), nil
}

func (c *collection) Find(ctx context.Context, filter bson.D, opts store.FindOptions) ([]bson.D, error) {
	if err := validateContext(ctx); err != nil {
		return nil, store.NewError(store.KindTimeout, err)
	}

	c.server.mu.RLock()
	matched, err := c.matchingLocked(filter)
	c.server.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	sortDocs(matched, opts.Sort)

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			matched = matched[:0]
		} else {
			matched = matched[opts.Skip:]
		}
	}

	if opts.Limit > 0 && opts.Limit < int64(len(matched)) {
		matched = matched[:opts.Limit]
	}

	out := make([]bson.D, 0, len(matched))
	for _, doc := range matched {
		out = append(out, project(doc, opts.Projection))
	}

	return out, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter, update bson.D) error {
	if err := validateContext(ctx); err != nil {
		return store.NewError(store.KindTimeout, err)
	}

	for _, op := range update {
		if op.Key != "$set" {
			return store.Errorf(store.KindOther, "unsupported update operator %q", op.Key)
		}

		if _, ok := op.Value.(bson.D); !ok {
			return store.Errorf(store.KindOther, "modifier %s needs a document, got %T", op.Key, op.Value)
		}
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	c.server.writes.Add(1)

	idx, err := c.firstMatchLocked(filter)
	if err != nil || idx < 0 {
		return err
	}

	data := c.docsLocked()
	doc := data.docs[idx]

	for _, op := range update {
		for _, field := range op.Value.(bson.D) {
			doc = setPath(doc, field.Key, copyValue(field.Value))
		}
	}

	data.docs[idx] = doc

	return nil
}

func (c *collection) ReplaceOne(ctx context.Context, filter, replacement bson.D) error {
	if err := validateContext(ctx); err != nil {
		return store.NewError(store.KindTimeout, err)
	}

	for _, e := range replacement {
		if strings.HasPrefix(e.Key, "$") {
			return store.Errorf(store.KindOther, "replacement document must not contain operator %q", e.Key)
		}
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	c.server.writes.Add(1)

	idx, err := c.firstMatchLocked(filter)
	if err != nil || idx < 0 {
		return err
	}

	data := c.docsLocked()
	id, _ := lookup(data.docs[idx], "_id")

	doc := bson.D{{Key: "_id", Value: id}}

	for _, e := range replacement {
		if e.Key != "_id" {
			doc = append(doc, bson.E{Key: e.Key, Value: copyValue(e.Value)})
		}
	}

	data.docs[idx] = doc

	return nil
}

func (c *collection) DeleteOne(ctx context.Context, filter bson.D) error {
	if err := validateContext(ctx); err != nil {
		return store.NewError(store.KindTimeout, err)
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	c.server.writes.Add(1)

	idx, err := c.firstMatchLocked(filter)
	if err != nil || idx < 0 {
		return err
	}

	data := c.docsLocked()
	data.docs = append(data.docs[:idx], data.docs[idx+1:]...)

	return nil
}

func (c *collection) CountDocuments(ctx context.Context, filter bson.D) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, store.NewError(store.KindTimeout, err)
	}

	c.server.exactCounts.Add(1)

	if err := c.server.waitCount(ctx); err != nil {
		return 0, err
	}

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()

	matched, err := c.matchingLocked(filter)
	if err != nil {
		return 0, err
	}

	return int64(len(matched)), nil
}

func (c *collection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, store.NewError(store.KindTimeout, err)
	}

	c.server.estimatedCounts.Add(1)

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()

	data := c.docsLocked()
	if data == nil {
		return 0, nil
	}

	return int64(len(data.docs)), nil
}

func (c *collection) Stats(ctx context.Context) (store.CollectionStats, error) {
	if err := validateContext(ctx); err != nil {
		return store.CollectionStats{}, store.NewError(store.KindTimeout, err)
	}

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()

	data := c.docsLocked()
	if data == nil {
		return store.CollectionStats{}, &store.Error{
			Err:  fmt.Errorf("ns not found: %s.%s", c.database, c.name),
			Kind: store.KindNotFound,
			Code: 26,
			Name: "NamespaceNotFound",
		}
	}

	var size int64
	for _, doc := range data.docs {
		size += docSize(doc)
	}

	stats := store.CollectionStats{
		Size:           float64(size),
		Count:          float64(len(data.docs)),
		StorageSize:    float64(size),
		NIndexes:       1,
		TotalIndexSize: indexSize,
		IndexSizes:     map[string]float64{"_id_": indexSize},
	}

	if len(data.docs) > 0 {
		stats.AvgObjSize = float64(size / int64(len(data.docs)))
	}

	return stats, nil
}

// indexSize is the fixed size reported for the implicit _id index.
const indexSize = 4096

func (c *collection) firstMatchLocked(filter bson.D) (int, error) {
	data := c.docsLocked()
	if data == nil {
		return -1, nil
	}

	for i, doc := range data.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return -1, err
		}

		if ok {
			return i, nil
		}
	}

	return -1, nil
}

func (c *collection) matchingLocked(filter bson.D) ([]bson.D, error) {
	data := c.docsLocked()
	if data == nil {
		return []bson.D{}, nil
	}

	out := []bson.D{}

	for _, doc := range data.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, copyDoc(doc))
		}
	}

	return out, nil
}
