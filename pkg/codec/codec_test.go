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

package codec_test

import (
	"math"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/united-manufacturing-hub/docconsole/pkg/codec"
)

func roundTripWire(canonical string) string {
	wire, err := codec.ParseJSON([]byte(canonical))
	Expect(err).ToNot(HaveOccurred())

	native, err := codec.Decode(wire)
	Expect(err).ToNot(HaveOccurred())

	out, err := json.Marshal(codec.Encode(native))
	Expect(err).ToNot(HaveOccurred())

	return string(out)
}

var _ = Describe("Encode", func() {
	It("wraps an ObjectID in its envelope", func() {
		oid, err := bson.ObjectIDFromHex("5f1d7a3e9b1e8a3c4d5e6f70")
		Expect(err).ToNot(HaveOccurred())

		Expect(codec.Encode(oid)).To(Equal(codec.Object{
			{Key: "$type", Value: "ObjectId"},
			{Key: "$value", Value: "5f1d7a3e9b1e8a3c4d5e6f70"},
		}))
	})

	It("renders dates like toISOString", func() {
		t := time.Date(2024, 5, 1, 12, 20, 30, 123_000_000, time.FixedZone("CEST", 2*3600))

		out, err := codec.Marshal(t)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(out)).To(Equal(`{"$type":"Date","$value":"2024-05-01T10:20:30.123Z"}`))
	})

	It("treats bson.DateTime like time.Time", func() {
		t := time.Date(2020, 1, 2, 3, 4, 5, 6_000_000, time.UTC)

		Expect(codec.Encode(bson.NewDateTimeFromTime(t))).To(Equal(codec.Encode(t)))
	})

	It("keeps document order and walks nested values", func() {
		doc := bson.D{
			{Key: "z", Value: int32(1)},
			{Key: "a", Value: bson.A{bson.Regex{Pattern: "^x", Options: "i"}, "plain"}},
		}

		out, err := codec.Marshal(doc)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(out)).To(Equal(`{"z":1,"a":[{"$type":"RegExp","$value":{"$pattern":"^x","$flags":"i"}},"plain"]}`))
	})

	It("sorts the keys of unordered maps", func() {
		out, err := codec.Marshal(bson.M{"b": "2", "a": "1"})
		Expect(err).ToNot(HaveOccurred())
		Expect(string(out)).To(Equal(`{"a":"1","b":"2"}`))
	})

	It("passes unsupported types through", func() {
		Expect(codec.Encode(int64(1) << 40)).To(Equal(int64(1) << 40))
		Expect(codec.Encode("text")).To(Equal("text"))
		Expect(codec.Encode(nil)).To(BeNil())
	})
})

var _ = Describe("Decode", func() {
	It("inverts Encode for the special types", func() {
		oid := bson.NewObjectID()
		t := time.Date(2023, 11, 5, 8, 9, 10, 987_000_000, time.UTC)
		re := bson.Regex{Pattern: "^user-[0-9]+$", Options: "im"}

		for _, v := range []any{oid, re} {
			decoded, err := codec.Decode(codec.Encode(v))
			Expect(err).ToNot(HaveOccurred())
			Expect(decoded).To(Equal(v))
		}

		decoded, err := codec.Decode(codec.Encode(t))
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded).To(BeAssignableToTypeOf(time.Time{}))
		Expect(decoded.(time.Time).Equal(t)).To(BeTrue())
	})

	It("turns objects into ordered documents", func() {
		native, err := codec.ParseInput(`{"b":1,"a":{"c":[1,"x",null,false]}}`)
		Expect(err).ToNot(HaveOccurred())

		Expect(native).To(Equal(bson.D{
			{Key: "b", Value: int32(1)},
			{Key: "a", Value: bson.D{{Key: "c", Value: bson.A{int32(1), "x", nil, false}}}},
		}))
	})

	It("stores numbers the way the browser would", func() {
		native, err := codec.ParseInput(`[1, 1.5, 2147483648, -3, 1e2]`)
		Expect(err).ToNot(HaveOccurred())
		Expect(native).To(Equal(bson.A{int32(1), 1.5, float64(2147483648), int32(-3), int32(100)}))
	})

	It("accepts dates without a time and epoch milliseconds", func() {
		native, err := codec.ParseInput(`[{"$type":"Date","$value":"2021-03-04"},{"$type":"Date","$value":0}]`)
		Expect(err).ToNot(HaveOccurred())

		arr := native.(bson.A)
		Expect(arr[0].(time.Time).Equal(time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC))).To(BeTrue())
		Expect(arr[1].(time.Time).Equal(time.UnixMilli(0))).To(BeTrue())
	})

	DescribeTable("rejects malformed identifiers",
		func(input string) {
			_, err := codec.ParseInput(input)
			Expect(err).To(MatchError(codec.ErrMalformedIdentifier))

			var de *codec.DecodeError
			Expect(err).To(BeAssignableToTypeOf(de))
		},
		Entry("empty", `{"$type":"ObjectId","$value":""}`),
		Entry("too short", `{"$type":"ObjectId","$value":"5f1d7a3e"}`),
		Entry("too long", `{"$type":"ObjectId","$value":"5f1d7a3e9b1e8a3c4d5e6f7012"}`),
		Entry("not hex", `{"$type":"ObjectId","$value":"zz1d7a3e9b1e8a3c4d5e6f70"}`),
		Entry("not a string", `{"$type":"ObjectId","$value":42}`),
		Entry("nested", `{"a":[{"$type":"ObjectId","$value":"nope"}]}`),
	)

	It("keeps the offending literal", func() {
		_, err := codec.ParseInput(`{"$type":"ObjectId","$value":"abc"}`)

		var de *codec.DecodeError
		Expect(err).To(HaveOccurred())
		Expect(errorAs(err, &de)).To(BeTrue())
		Expect(de.Literal).To(Equal("abc"))
	})

	It("rejects unparsable dates", func() {
		_, err := codec.ParseInput(`{"$type":"Date","$value":"yesterday"}`)
		Expect(err).To(MatchError(codec.ErrMalformedInstant))
	})

	DescribeTable("rejects bad patterns",
		func(input string) {
			_, err := codec.ParseInput(input)
			Expect(err).To(MatchError(codec.ErrMalformedPattern))
		},
		Entry("unknown flag", `{"$type":"RegExp","$value":{"$pattern":"a","$flags":"q"}}`),
		Entry("repeated flag", `{"$type":"RegExp","$value":{"$pattern":"a","$flags":"gg"}}`),
		Entry("missing pattern", `{"$type":"RegExp","$value":{"$flags":"i"}}`),
		Entry("value not an object", `{"$type":"RegExp","$value":"a"}`),
	)

	It("leaves unknown tags untouched", func() {
		native, err := codec.ParseInput(`{"$type":"Binary","$value":{"$type":"ObjectId","$value":"bad"}}`)
		Expect(err).ToNot(HaveOccurred())
		Expect(native).To(Equal(bson.D{
			{Key: "$type", Value: "Binary"},
			{Key: "$value", Value: bson.D{{Key: "$type", Value: "ObjectId"}, {Key: "$value", Value: "bad"}}},
		}))
	})
})

var _ = Describe("Round trip", func() {
	DescribeTable("reproduces canonical wire input byte for byte",
		func(canonical string) {
			Expect(roundTripWire(canonical)).To(Equal(canonical))
		},
		Entry("scalars", `[null,true,false,0,-12,1.5,"text"]`),
		Entry("empty object", `{}`),
		Entry("ordered keys", `{"zeta":1,"alpha":{"nested":[1,2,3]}}`),
		Entry("identifier", `{"_id":{"$type":"ObjectId","$value":"5f1d7a3e9b1e8a3c4d5e6f70"}}`),
		Entry("date", `{"at":{"$type":"Date","$value":"2024-05-01T10:20:30.123Z"}}`),
		Entry("pattern", `{"name":{"$type":"RegExp","$value":{"$pattern":"^a.*b$","$flags":"gi"}}}`),
		Entry("unknown tag", `{"$type":"Decimal128","$value":"1.10"}`),
		Entry("exponent floats", `{"a":-1.25e-7,"b":1e+21,"c":[0.5,2.5e-8,{"d":1.5e+300}],"e":0.000001}`),
	)

	It("writes non-finite doubles as null", func() {
		out, err := json.Marshal(codec.Encode(bson.D{
			{Key: "nan", Value: math.NaN()},
			{Key: "inf", Value: bson.A{math.Inf(-1)}},
		}))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(out)).To(Equal(`{"nan":null,"inf":[null]}`))
	})
})

var _ = Describe("Free text input", func() {
	It("treats blank input as an empty object", func() {
		value, err := codec.ParseWire("   ")
		Expect(err).ToNot(HaveOccurred())
		Expect(value).To(Equal(codec.Object{}))
	})

	It("falls back to an empty object on syntax errors", func() {
		value, err := codec.ParseWireOrEmpty(`{"status": `)
		Expect(err).To(MatchError(codec.ErrInvalidInput))
		Expect(value).To(Equal(codec.Object{}))
	})

	It("rejects trailing data", func() {
		_, err := codec.ParseWire(`{} {}`)
		Expect(err).To(MatchError(codec.ErrInvalidInput))
	})

	It("requires an object for documents", func() {
		_, err := codec.DecodeDocument([]any{"a"})
		Expect(err).To(MatchError(codec.ErrInvalidInput))

		doc, err := codec.DecodeDocument(nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc).To(BeEmpty())
	})
})

var _ = Describe("Object", func() {
	It("unmarshals with order preserved and last key winning on lookup", func() {
		var obj codec.Object
		Expect(json.Unmarshal([]byte(`{"a":1,"b":2,"a":3}`), &obj)).To(Succeed())

		Expect(obj).To(HaveLen(3))
		Expect(obj[0].Key).To(Equal("a"))

		v, ok := obj.Get("a")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(json.Number("3")))
	})
})

var _ = Describe("ParseDocumentOrEmpty", func() {
	It("returns an empty document and a warning for invalid text", func() {
		doc, err := codec.ParseDocumentOrEmpty(`{"a":`)
		Expect(err).To(MatchError(codec.ErrInvalidInput))
		Expect(doc).To(Equal(bson.D{}))

		doc, err = codec.ParseDocumentOrEmpty(`[1,2]`)
		Expect(err).To(MatchError(codec.ErrInvalidInput))
		Expect(doc).To(Equal(bson.D{}))
	})

	It("fails on malformed literals", func() {
		doc, err := codec.ParseDocumentOrEmpty(`{"_id":{"$type":"ObjectId","$value":"x"}}`)
		Expect(err).To(MatchError(codec.ErrMalformedIdentifier))
		Expect(doc).To(BeNil())
	})

	It("decodes valid filters", func() {
		doc, err := codec.ParseDocumentOrEmpty(`{"qty":{"$gt":5}}`)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc).To(Equal(bson.D{{Key: "qty", Value: bson.D{{Key: "$gt", Value: int32(5)}}}}))
	})
})
