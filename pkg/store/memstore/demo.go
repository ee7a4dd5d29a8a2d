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
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// NewDemoDialer returns a Dialer where every address in addresses reaches a
// server seeded with a small sample data set.
func NewDemoDialer(addresses []string) *Dialer {
	d := NewDialer()

	for _, address := range addresses {
		Seed(d.AddServer(address))
	}

	return d
}

// Seed fills s with the sample data set used in demo mode.
func Seed(s *Server) {
	created := time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

	s.Insert("shop", "products",
		bson.D{{Key: "sku", Value: "A-100"}, {Key: "name", Value: "Hex bolt M8"}, {Key: "price", Value: 0.35}, {Key: "stock", Value: int32(1200)}, {Key: "tags", Value: bson.A{"steel", "fastener"}}},
		bson.D{{Key: "sku", Value: "A-200"}, {Key: "name", Value: "Washer M8"}, {Key: "price", Value: 0.05}, {Key: "stock", Value: int32(5000)}, {Key: "tags", Value: bson.A{"steel"}}},
		bson.D{{Key: "sku", Value: "B-010"}, {Key: "name", Value: "Bearing 608"}, {Key: "price", Value: 1.9}, {Key: "stock", Value: int32(80)}, {Key: "tags", Value: bson.A{"rolling"}}},
	)

	for i := 0; i < 25; i++ {
		s.Insert("shop", "orders", bson.D{
			{Key: "number", Value: int32(1000 + i)},
			{Key: "sku", Value: []string{"A-100", "A-200", "B-010"}[i%3]},
			{Key: "quantity", Value: int32(10 * (i%4 + 1))},
			{Key: "createdAt", Value: created.Add(time.Duration(i) * time.Hour)},
			{Key: "customer", Value: bson.D{{Key: "name", Value: "Customer " + string(rune('A'+i%5))}, {Key: "country", Value: "DE"}}},
		})
	}

	s.CreateCollection("shop", "returns")
	s.Insert("audit", "events", bson.D{
		{Key: "kind", Value: "login"},
		{Key: "user", Value: "operator"},
		{Key: "at", Value: created},
		{Key: "pattern", Value: bson.Regex{Pattern: "^op", Options: "i"}},
	})
}
