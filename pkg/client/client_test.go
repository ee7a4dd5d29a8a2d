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

package client_test

import (
	"context"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/united-manufacturing-hub/docconsole/pkg/api"
	"github.com/united-manufacturing-hub/docconsole/pkg/client"
	"github.com/united-manufacturing-hub/docconsole/pkg/hosts"
	"github.com/united-manufacturing-hub/docconsole/pkg/registry"
	"github.com/united-manufacturing-hub/docconsole/pkg/store/memstore"
)

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		dialer   *memstore.Dialer
		good     *memstore.Server
		reg      *registry.Registry
		readOnly bool
		server   *httptest.Server
		c        *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		readOnly = false

		dialer = memstore.NewDemoDialer([]string{"demo:27017"})
		good, _ = dialer.Server("demo:27017")

		reg = registry.New(dialer, registry.Options{CountTimeout: time.Second})
		reg.Load(ctx, []string{"demo:27017", "down:1"})
	})

	JustBeforeEach(func() {
		hostStore := hosts.NewMemoryStore("demo:27017", "down:1")
		server = httptest.NewServer(api.NewServer(reg, hostStore, api.Options{ReadOnly: readOnly}).Handler())
		c = client.New(server.URL, server.Client())
	})

	AfterEach(func() {
		server.Close()
		Expect(reg.Close(ctx)).To(Succeed())
	})

	It("lists servers, databases and collections", func() {
		servers, err := c.Servers(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(servers).To(HaveLen(2))
		Expect(servers[0].Name).To(Equal("demo:27017"))
		Expect(servers[0].Error).To(BeNil())
		Expect(servers[1].Name).To(Equal("down:1"))
		Expect(servers[1].Error).ToNot(BeNil())

		databases, err := c.Databases(ctx, "demo:27017")
		Expect(err).ToNot(HaveOccurred())
		Expect(databases).To(ConsistOf(HaveField("Name", "audit"), HaveField("Name", "shop")))

		collections, err := c.Collections(ctx, "demo:27017", "shop")
		Expect(err).ToNot(HaveOccurred())
		Expect(collections).To(HaveLen(3))
		Expect(collections[1].Name).To(Equal("products"))
		Expect(collections[1].Count).To(BeNumerically("==", 3))
	})

	It("sends native filters and decodes native results", func() {
		created := time.Date(2024, time.March, 1, 20, 30, 0, 0, time.UTC)

		res, err := c.Query(ctx, "demo:27017", "shop", "orders", client.Query{
			Filter: bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: created}}}},
			Sort:   bson.D{{Key: "number", Value: int32(1)}},
			Limit:  2,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Warnings).To(BeEmpty())
		Expect(res.Documents).To(HaveLen(2))

		first := res.Documents[0]
		Expect(first[0].Key).To(Equal("_id"))
		Expect(first[0].Value).To(BeAssignableToTypeOf(bson.ObjectID{}))
		Expect(fields(first)["number"]).To(Equal(int32(1011)))
		Expect(fields(first)["createdAt"]).To(Equal(created))
	})

	It("round trips regular expressions", func() {
		res, err := c.Query(ctx, "demo:27017", "audit", "events", client.Query{
			Filter: bson.D{{Key: "user", Value: bson.Regex{Pattern: "^OP", Options: "i"}}},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Documents).To(HaveLen(1))
		Expect(fields(res.Documents[0])["pattern"]).To(Equal(bson.Regex{Pattern: "^op", Options: "i"}))
	})

	It("counts", func() {
		n, err := c.Count(ctx, "demo:27017", "shop", "orders", nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(BeNumerically("==", 25))
		Expect(good.ExactCounts()).To(BeZero())

		n, err = c.Count(ctx, "demo:27017", "shop", "orders", bson.D{{Key: "quantity", Value: int32(40)}})
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(BeNumerically("==", 6))
	})

	It("reads, updates and deletes a document", func() {
		id := good.Insert("shop", "products", bson.D{{Key: "sku", Value: "Z-1"}, {Key: "stock", Value: int32(1)}})[0].(bson.ObjectID).Hex()

		doc, err := c.Document(ctx, "demo:27017", "shop", "products", id)
		Expect(err).ToNot(HaveOccurred())
		Expect(fields(doc)["sku"]).To(Equal("Z-1"))

		restocked := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
		_, err = c.UpdateDocument(ctx, "demo:27017", "shop", "products", id,
			bson.D{{Key: "stock", Value: int32(7)}, {Key: "restockedAt", Value: restocked}}, true)
		Expect(err).ToNot(HaveOccurred())

		doc, err = c.Document(ctx, "demo:27017", "shop", "products", id)
		Expect(err).ToNot(HaveOccurred())
		Expect(fields(doc)).To(HaveKeyWithValue("sku", "Z-1"))
		Expect(fields(doc)).To(HaveKeyWithValue("stock", int32(7)))
		Expect(fields(doc)).To(HaveKeyWithValue("restockedAt", restocked))

		Expect(c.DeleteDocument(ctx, "demo:27017", "shop", "products", id)).To(Succeed())

		_, err = c.Document(ctx, "demo:27017", "shop", "products", id)
		Expect(client.IsNotFound(err)).To(BeTrue())
	})

	It("surfaces validation errors with the literal", func() {
		_, err := c.Document(ctx, "demo:27017", "shop", "products", "nope")

		var apiErr *client.APIError
		Expect(err).To(BeAssignableToTypeOf(apiErr))
		Expect(err.(*client.APIError).Status).To(Equal(400))
		Expect(err.(*client.APIError).Literal).To(Equal("nope"))
	})

	It("adds and removes servers", func() {
		dialer.AddServer("extra:27017")

		Expect(c.AddServer(ctx, "extra:27017")).To(Succeed())
		Expect(c.Servers(ctx)).To(ContainElement(HaveField("Name", "extra:27017")))

		Expect(c.RemoveServer(ctx, "extra:27017")).To(Succeed())
		Expect(c.Servers(ctx)).ToNot(ContainElement(HaveField("Name", "extra:27017")))
	})

	Context("when the console is read-only", func() {
		BeforeEach(func() {
			readOnly = true
		})

		It("reports it and rejects writes", func() {
			Expect(c.ReadOnly(ctx)).To(BeTrue())

			err := c.DeleteDocument(ctx, "demo:27017", "shop", "products", bson.NewObjectID().Hex())
			Expect(client.IsReadOnly(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("read-only")))
			Expect(good.Writes()).To(BeZero())
		})
	})
})

// fields indexes doc by key. Later duplicates win.
func fields(doc bson.D) map[string]any {
	m := make(map[string]any, len(doc))
	for _, e := range doc {
		m[e.Key] = e.Value
	}

	return m
}
