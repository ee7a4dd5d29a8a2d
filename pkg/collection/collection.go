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

// Package collection reads and edits the documents of one collection. Values
// cross its boundary in wire form: inputs are decoded with codec.Decode
// before they reach the store and results are encoded with codec.Encode.
package collection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/docconsole/pkg/codec"
	"github.com/united-manufacturing-hub/docconsole/pkg/logger"
	"github.com/united-manufacturing-hub/docconsole/pkg/metrics"
	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

// DefaultCountTimeout bounds an exact count when no other budget is configured.
const DefaultCountTimeout = 5 * time.Second

// ErrDocumentNotFound is returned by FindOne when no document has the given id.
var ErrDocumentNotFound = errors.New("document not found")

// Query selects the documents returned by Find. Filter, Projection and Sort
// are native documents, usually produced by codec.ParseDocumentOrEmpty.
type Query struct {
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Skip       int64
	Limit      int64
}

// Stats describes a collection in the listing of a database.
type Stats struct {
	Name           string             `json:"name"`
	Size           float64            `json:"size"`
	DataSize       float64            `json:"dataSize"`
	Count          float64            `json:"count"`
	AvgObjSize     float64            `json:"avgObjSize"`
	StorageSize    float64            `json:"storageSize"`
	Capped         bool               `json:"capped"`
	NIndexes       float64            `json:"nIndexes"`
	TotalIndexSize float64            `json:"totalIndexSize"`
	IndexSizes     map[string]float64 `json:"indexSizes"`
}

// Accessor wraps a single store collection.
type Accessor struct {
	coll         store.Collection
	countTimeout time.Duration
	log          *zap.SugaredLogger
}

// New returns an Accessor for coll. A non-positive countTimeout selects
// DefaultCountTimeout.
func New(coll store.Collection, countTimeout time.Duration) *Accessor {
	if countTimeout <= 0 {
		countTimeout = DefaultCountTimeout
	}

	return &Accessor{
		coll:         coll,
		countTimeout: countTimeout,
		log:          logger.For(logger.ComponentCollection).With("collection", coll.Name()),
	}
}

// Name returns the collection name.
func (a *Accessor) Name() string {
	return a.coll.Name()
}

// FindOne returns the encoded document with the given hex id.
func (a *Accessor) FindOne(ctx context.Context, id string) (any, error) {
	oid, err := codec.ParseObjectID(id)
	if err != nil {
		return nil, err
	}

	doc, err := a.coll.FindOne(ctx, byID(oid))
	if errors.Is(err, store.ErrNoDocument) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find document %s: %w", id, err)
	}

	return codec.Encode(doc), nil
}

// Find returns the encoded documents matching q in sort order.
func (a *Accessor) Find(ctx context.Context, q Query) ([]any, error) {
	if q.Skip < 0 {
		q.Skip = 0
	}

	docs, err := a.coll.Find(ctx, q.Filter, store.FindOptions{
		Projection: q.Projection,
		Sort:       q.Sort,
		Skip:       q.Skip,
		Limit:      q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	results := make([]any, 0, len(docs))
	for _, doc := range docs {
		results = append(results, codec.Encode(doc))
	}

	return results, nil
}

// UpdateOne writes newValue, given in wire form, to the document with the
// given id. A partial update sets the given fields and leaves the others
// alone. A full update replaces the document body and keeps its _id; an _id
// in newValue is ignored. The encoded value that was written is returned.
func (a *Accessor) UpdateOne(ctx context.Context, id string, newValue any, partial bool) (any, error) {
	oid, err := codec.ParseObjectID(id)
	if err != nil {
		return nil, err
	}

	body, err := codec.DecodeDocument(newValue)
	if err != nil {
		return nil, err
	}

	fields := withoutID(body)

	if partial {
		if len(fields) == 0 {
			return codec.Encode(fields), nil
		}

		if err := a.coll.UpdateOne(ctx, byID(oid), bson.D{{Key: "$set", Value: fields}}); err != nil {
			return nil, fmt.Errorf("failed to update document %s: %w", id, err)
		}

		return codec.Encode(fields), nil
	}

	replacement := append(bson.D{{Key: "_id", Value: oid}}, fields...)

	if err := a.coll.ReplaceOne(ctx, byID(oid), replacement); err != nil {
		return nil, fmt.Errorf("failed to replace document %s: %w", id, err)
	}

	return codec.Encode(replacement), nil
}

// RemoveOne deletes the document with the given id. Deleting a missing
// document is not an error.
func (a *Accessor) RemoveOne(ctx context.Context, id string) error {
	oid, err := codec.ParseObjectID(id)
	if err != nil {
		return err
	}

	if err := a.coll.DeleteOne(ctx, byID(oid)); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}

	return nil
}

// Count counts the documents matching query. An empty query is answered from
// collection metadata. Otherwise an exact count runs within the count budget
// and falls back to the metadata estimate when it fails for any reason.
func (a *Accessor) Count(ctx context.Context, query bson.D) (int64, error) {
	if len(query) == 0 {
		return a.estimatedCount(ctx)
	}

	countCtx, cancel := context.WithTimeout(ctx, a.countTimeout)
	defer cancel()

	n, err := a.coll.CountDocuments(countCtx, query)
	if err == nil {
		return n, nil
	}

	a.log.Debugw("Exact count failed, using the estimate", "error", err, "kind", store.KindOf(err).String())
	metrics.IncCountFallback()

	return a.estimatedCount(ctx)
}

func (a *Accessor) estimatedCount(ctx context.Context) (int64, error) {
	n, err := a.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate document count: %w", err)
	}

	return n, nil
}

// Stats returns the collection statistics. Failures are logged and yield
// zero values.
func (a *Accessor) Stats(ctx context.Context) Stats {
	raw, err := a.coll.Stats(ctx)
	if err != nil {
		a.log.Debugw("Collection statistics unavailable", "error", err)
	}

	indexSizes := raw.IndexSizes
	if indexSizes == nil {
		indexSizes = map[string]float64{}
	}

	return Stats{
		Name:           a.coll.Name(),
		Size:           raw.StorageSize + raw.TotalIndexSize,
		DataSize:       raw.Size,
		Count:          raw.Count,
		AvgObjSize:     raw.AvgObjSize,
		StorageSize:    raw.StorageSize,
		Capped:         raw.Capped,
		NIndexes:       raw.NIndexes,
		TotalIndexSize: raw.TotalIndexSize,
		IndexSizes:     indexSizes,
	}
}

func byID(oid bson.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: oid}}
}

func withoutID(doc bson.D) bson.D {
	out := make(bson.D, 0, len(doc))

	for _, e := range doc {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}

	return out
}
