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

// Package mongostore implements store on top of the official MongoDB driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

const appName = "docconsole"

// Dialer connects to MongoDB servers.
type Dialer struct {
	// ConnectTimeout bounds the connection handshake, server selection and the
	// initial ping.
	ConnectTimeout time.Duration
}

// NewDialer returns a Dialer with the given connect timeout.
func NewDialer(connectTimeout time.Duration) *Dialer {
	return &Dialer{ConnectTimeout: connectTimeout}
}

// Dial connects to uri and pings the primary. The client is disconnected
// again when the ping fails.
func (d *Dialer) Dial(ctx context.Context, uri string) (store.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName(appName)

	if d.ConnectTimeout > 0 {
		opts = opts.SetConnectTimeout(d.ConnectTimeout).SetServerSelectionTimeout(d.ConnectTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create client: %w", err))
	}

	pingCtx := ctx
	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc

		pingCtx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))

		return nil, classify(err)
	}

	return &Client{client: client}, nil
}

// Client wraps a connected *mongo.Client.
type Client struct {
	client *mongo.Client
}

func (c *Client) ServerStatus(ctx context.Context) (store.ServerStatus, error) {
	res, err := c.client.ListDatabases(ctx, bson.D{})
	if err != nil {
		return store.ServerStatus{}, classify(err)
	}

	status := store.ServerStatus{
		TotalSize: res.TotalSize,
		Databases: make([]store.DatabaseInfo, 0, len(res.Databases)),
	}

	for _, db := range res.Databases {
		status.Databases = append(status.Databases, store.DatabaseInfo{
			Name:       db.Name,
			SizeOnDisk: db.SizeOnDisk,
			Empty:      db.Empty,
		})
	}

	return status, nil
}

func (c *Client) ListCollections(ctx context.Context, database string) ([]string, error) {
	names, err := c.client.Database(database).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, classify(err)
	}

	return names, nil
}

func (c *Client) Collection(database, name string) store.Collection {
	db := c.client.Database(database)

	return &Collection{db: db, coll: db.Collection(name)}
}

func (c *Client) Disconnect(ctx context.Context) error {
	return classify(c.client.Disconnect(ctx))
}

// Collection wraps a *mongo.Collection.
type Collection struct {
	db   *mongo.Database
	coll *mongo.Collection
}

func (c *Collection) Name() string {
	return c.coll.Name()
}

func (c *Collection) FindOne(ctx context.Context, filter bson.D) (bson.D, error) {
	var doc bson.D

	err := c.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNoDocument
	}

	if err != nil {
		return nil, classify(err)
	}

	return doc, nil
}

func (c *Collection) Find(ctx context.Context, filter bson.D, opts store.FindOptions) ([]bson.D, error) {
	findOpts := options.Find()

	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}

	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}

	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}

	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := c.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, classify(err)
	}

	docs := []bson.D{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}

	return docs, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter, update bson.D) error {
	_, err := c.coll.UpdateOne(ctx, filter, update)

	return classify(err)
}

func (c *Collection) ReplaceOne(ctx context.Context, filter, replacement bson.D) error {
	_, err := c.coll.ReplaceOne(ctx, filter, replacement)

	return classify(err)
}

func (c *Collection) DeleteOne(ctx context.Context, filter bson.D) error {
	_, err := c.coll.DeleteOne(ctx, filter)

	return classify(err)
}

func (c *Collection) CountDocuments(ctx context.Context, filter bson.D) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, filter)

	return n, classify(err)
}

func (c *Collection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	n, err := c.coll.EstimatedDocumentCount(ctx)

	return n, classify(err)
}

// Stats runs collStats. Sizes come back as int32, int64 or double depending
// on their magnitude and the server version, so they are read generically.
func (c *Collection) Stats(ctx context.Context) (store.CollectionStats, error) {
	var res bson.M

	err := c.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: c.coll.Name()}}).Decode(&res)
	if err != nil {
		return store.CollectionStats{}, classify(err)
	}

	stats := store.CollectionStats{
		Size:           number(res["size"]),
		Count:          number(res["count"]),
		AvgObjSize:     number(res["avgObjSize"]),
		StorageSize:    number(res["storageSize"]),
		NIndexes:       number(res["nindexes"]),
		TotalIndexSize: number(res["totalIndexSize"]),
		IndexSizes:     map[string]float64{},
	}

	stats.Capped, _ = res["capped"].(bool)

	switch sizes := res["indexSizes"].(type) {
	case bson.M:
		for name, size := range sizes {
			stats.IndexSizes[name] = number(size)
		}
	case bson.D:
		for _, e := range sizes {
			stats.IndexSizes[e.Key] = number(e.Value)
		}
	}

	return stats, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
