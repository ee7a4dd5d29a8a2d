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

package memstore_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/united-manufacturing-hub/docconsole/pkg/store"
	"github.com/united-manufacturing-hub/docconsole/pkg/store/memstore"
)

var _ = Describe("Dialer", func() {
	var (
		ctx    context.Context
		dialer *memstore.Dialer
	)

	BeforeEach(func() {
		ctx = context.Background()
		dialer = memstore.NewDialer()
	})

	It("reaches servers by their normalized name", func() {
		dialer.AddServer("db")

		client, err := dialer.Dial(ctx, "mongodb://db:27017")
		Expect(err).ToNot(HaveOccurred())
		Expect(dialer.OpenClients()).To(Equal(int64(1)))

		Expect(client.Disconnect(ctx)).To(Succeed())
		Expect(client.Disconnect(ctx)).To(Succeed())
		Expect(dialer.OpenClients()).To(Equal(int64(0)))
	})

	It("fails with a network error for unknown and unreachable servers", func() {
		_, err := dialer.Dial(ctx, "mongodb://nowhere:1")
		Expect(store.IsKind(err, store.KindNetwork)).To(BeTrue())

		dialer.AddServer("db:1").SetUnreachable(true)
		_, err = dialer.Dial(ctx, "db:1")
		Expect(store.IsKind(err, store.KindNetwork)).To(BeTrue())
		Expect(dialer.Dials()).To(BeZero())
	})

	It("reports authorization failures on the database listing", func() {
		dialer.AddServer("db").SetUnauthorized(true)

		client, err := dialer.Dial(ctx, "db")
		Expect(err).ToNot(HaveOccurred())

		_, err = client.ServerStatus(ctx)
		Expect(store.IsKind(err, store.KindAuthorization)).To(BeTrue())

		code, _ := store.CodeOf(err)
		Expect(code).To(Equal(int32(13)))
	})
})

var _ = Describe("Collection", func() {
	var (
		ctx    context.Context
		server *memstore.Server
		coll   store.Collection
		ids    []any
	)

	BeforeEach(func() {
		ctx = context.Background()
		dialer := memstore.NewDialer()
		server = dialer.AddServer("db")

		ids = server.Insert("shop", "items",
			bson.D{{Key: "name", Value: "b"}, {Key: "qty", Value: int32(2)}, {Key: "tags", Value: bson.A{"x", "y"}}},
			bson.D{{Key: "name", Value: "a"}, {Key: "qty", Value: int64(5)}},
			bson.D{{Key: "name", Value: "c"}, {Key: "qty", Value: 9.5}, {Key: "meta", Value: bson.D{{Key: "color", Value: "red"}}}},
		)

		client, err := dialer.Dial(ctx, "db")
		Expect(err).ToNot(HaveOccurred())

		coll = client.Collection("shop", "items")
	})

	It("assigns identifiers and lists databases and collections", func() {
		Expect(ids).To(HaveLen(3))
		Expect(ids[0]).To(BeAssignableToTypeOf(bson.ObjectID{}))

		client, err := memstore.NewDialer().Dial(ctx, "x")
		Expect(err).To(HaveOccurred())
		Expect(client).To(BeNil())
	})

	It("finds by identifier", func() {
		doc, err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: ids[1]}})
		Expect(err).ToNot(HaveOccurred())
		Expect(doc[1]).To(Equal(bson.E{Key: "name", Value: "a"}))

		_, err = coll.FindOne(ctx, bson.D{{Key: "_id", Value: bson.NewObjectID()}})
		Expect(err).To(MatchError(store.ErrNoDocument))
	})

	It("filters, sorts, skips, limits and projects", func() {
		docs, err := coll.Find(ctx, bson.D{{Key: "qty", Value: bson.D{{Key: "$gte", Value: int32(2)}}}}, store.FindOptions{
			Sort:       bson.D{{Key: "name", Value: int32(-1)}},
			Projection: bson.D{{Key: "name", Value: int32(1)}, {Key: "_id", Value: int32(0)}},
			Skip:       1,
			Limit:      1,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(docs).To(Equal([]bson.D{{{Key: "name", Value: "b"}}}))
	})

	It("compares numbers across types and matches arrays, paths and patterns", func() {
		for filter, want := range map[string]bson.D{
			"int64 vs int32": {{Key: "qty", Value: int32(5)}},
			"array element":  {{Key: "tags", Value: "y"}},
			"dotted path":    {{Key: "meta.color", Value: "red"}},
			"pattern":        {{Key: "name", Value: bson.Regex{Pattern: "^C$", Options: "i"}}},
		} {
			docs, err := coll.Find(ctx, want, store.FindOptions{})
			Expect(err).ToNot(HaveOccurred(), filter)
			Expect(docs).To(HaveLen(1), filter)
		}
	})

	It("rejects unknown operators", func() {
		_, err := coll.Find(ctx, bson.D{{Key: "$where", Value: "1"}}, store.FindOptions{})
		Expect(err).To(HaveOccurred())
	})

	It("merges $set updates and keeps other fields", func() {
		filter := bson.D{{Key: "_id", Value: ids[0]}}
		Expect(coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "qty", Value: int32(3)}, {Key: "meta.size", Value: "L"}}}})).To(Succeed())

		doc, err := coll.FindOne(ctx, filter)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc).To(Equal(bson.D{
			{Key: "_id", Value: ids[0]},
			{Key: "name", Value: "b"},
			{Key: "qty", Value: int32(3)},
			{Key: "tags", Value: bson.A{"x", "y"}},
			{Key: "meta", Value: bson.D{{Key: "size", Value: "L"}}},
		}))
	})

	It("replaces documents but keeps their identifier", func() {
		filter := bson.D{{Key: "_id", Value: ids[2]}}
		Expect(coll.ReplaceOne(ctx, filter, bson.D{{Key: "_id", Value: "ignored"}, {Key: "only", Value: true}})).To(Succeed())

		doc, err := coll.FindOne(ctx, filter)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc).To(Equal(bson.D{{Key: "_id", Value: ids[2]}, {Key: "only", Value: true}}))
	})

	It("deletes idempotently", func() {
		filter := bson.D{{Key: "_id", Value: ids[0]}}
		Expect(coll.DeleteOne(ctx, filter)).To(Succeed())
		Expect(coll.DeleteOne(ctx, filter)).To(Succeed())

		n, err := coll.EstimatedDocumentCount(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(2)))
		Expect(server.Writes()).To(Equal(int64(2)))
	})

	It("does not leak stored documents", func() {
		doc, err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: ids[0]}})
		Expect(err).ToNot(HaveOccurred())

		doc[1].Value = "changed"
		doc[3].Value.(bson.A)[0] = "changed"

		again, err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: ids[0]}})
		Expect(err).ToNot(HaveOccurred())
		Expect(again[1].Value).To(Equal("b"))
		Expect(again[3].Value).To(Equal(bson.A{"x", "y"}))
	})

	It("counts and honors the context while an exact count is delayed", func() {
		n, err := coll.CountDocuments(ctx, bson.D{{Key: "name", Value: "a"}})
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		server.SetCountDelay(time.Hour)

		short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err = coll.CountDocuments(short, bson.D{{Key: "name", Value: "a"}})
		Expect(store.IsKind(err, store.KindTimeout)).To(BeTrue())
		Expect(server.ExactCounts()).To(Equal(int64(2)))
	})

	It("fails exact counts on demand", func() {
		server.SetCountError(errors.New("interrupted"))

		_, err := coll.CountDocuments(ctx, bson.D{})
		Expect(err).To(MatchError("interrupted"))
	})

	It("reports statistics and a missing namespace", func() {
		stats, err := coll.Stats(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(stats.Count).To(Equal(3.0))
		Expect(stats.Size).To(BeNumerically(">", 0))
		Expect(stats.IndexSizes).To(HaveKey("_id_"))

		server.CreateCollection("shop", "empty")
		Expect(server.Documents("shop", "empty")).To(BeEmpty())

		client, err := memstore.NewDemoDialer([]string{"db"}).Dial(ctx, "db")
		Expect(err).ToNot(HaveOccurred())

		_, err = client.Collection("shop", "missing").Stats(ctx)
		Expect(store.IsKind(err, store.KindNotFound)).To(BeTrue())
	})
})

var _ = Describe("Demo data", func() {
	It("lists sorted databases and collections", func() {
		ctx := context.Background()

		client, err := memstore.NewDemoDialer([]string{"localhost:27017"}).Dial(ctx, "localhost")
		Expect(err).ToNot(HaveOccurred())

		status, err := client.ServerStatus(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(status.Databases).To(HaveLen(2))
		Expect(status.Databases[0].Name).To(Equal("audit"))
		Expect(status.TotalSize).To(BeNumerically(">", 0))

		names, err := client.ListCollections(ctx, "shop")
		Expect(err).ToNot(HaveOccurred())
		Expect(names).To(Equal([]string{"orders", "products", "returns"}))
	})
})
