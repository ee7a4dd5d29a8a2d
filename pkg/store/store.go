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

// Package store describes the operations the console needs from a document
// database server. mongostore implements it on top of the MongoDB driver and
// memstore keeps everything in memory for tests and demo mode.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Dialer opens clients. Dial connects and verifies the server answers before
// returning.
type Dialer interface {
	Dial(ctx context.Context, uri string) (Client, error)
}

// Client is a connection to one server.
type Client interface {
	// ServerStatus lists the databases of the server. It needs the
	// listDatabases privilege and doubles as the authorization probe.
	ServerStatus(ctx context.Context) (ServerStatus, error)
	ListCollections(ctx context.Context, database string) ([]string, error)
	Collection(database, name string) Collection
	Disconnect(ctx context.Context) error
}

// Collection is a handle on a single collection.
type Collection interface {
	Name() string
	// FindOne returns ErrNoDocument when nothing matches.
	FindOne(ctx context.Context, filter bson.D) (bson.D, error)
	Find(ctx context.Context, filter bson.D, opts FindOptions) ([]bson.D, error)
	UpdateOne(ctx context.Context, filter, update bson.D) error
	ReplaceOne(ctx context.Context, filter, replacement bson.D) error
	DeleteOne(ctx context.Context, filter bson.D) error
	CountDocuments(ctx context.Context, filter bson.D) (int64, error)
	EstimatedDocumentCount(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (CollectionStats, error)
}

// FindOptions narrows a Find. Empty Sort keeps the store order, empty
// Projection returns whole documents and a zero Limit means no limit.
type FindOptions struct {
	Projection bson.D
	Sort       bson.D
	Skip       int64
	Limit      int64
}

// DatabaseInfo is one entry of the database listing.
type DatabaseInfo struct {
	Name       string
	SizeOnDisk int64
	Empty      bool
}

// ServerStatus is the result of the database listing.
type ServerStatus struct {
	TotalSize int64
	Databases []DatabaseInfo
}

// CollectionStats holds the figures reported by collStats.
type CollectionStats struct {
	Size           float64
	Count          float64
	AvgObjSize     float64
	StorageSize    float64
	Capped         bool
	NIndexes       float64
	TotalIndexSize float64
	IndexSizes     map[string]float64
}
