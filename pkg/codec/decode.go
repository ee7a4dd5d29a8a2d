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

package codec

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// regexFlags lists the flags accepted for a RegExp: the JavaScript set plus
// the MongoDB-only l and x options.
const regexFlags = "dgilmsuvxy"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Decode converts a wire value into its native form. Objects become bson.D,
// arrays bson.A, and tagged envelopes the matching bson type. Envelopes with an
// unknown $type are kept as they are.
func Decode(w any) (any, error) {
	switch val := w.(type) {
	case Object:
		return decodeObject(val)
	case map[string]any:
		return decodeObject(sortedObject(val))
	case []any:
		arr := make(bson.A, 0, len(val))

		for _, item := range val {
			decoded, err := Decode(item)
			if err != nil {
				return nil, err
			}

			arr = append(arr, decoded)
		}

		return arr, nil
	case json.Number:
		return decodeNumber(val), nil
	default:
		return w, nil
	}
}

func decodeObject(obj Object) (any, error) {
	if typ, ok := obj.Get(TypeKey); ok {
		value, _ := obj.Get(ValueKey)

		switch typ {
		case TypeObjectID:
			return ParseObjectID(value)
		case TypeDate:
			return parseDate(value)
		case TypeRegExp:
			return parseRegex(value)
		default:
			return raw(obj), nil
		}
	}

	doc := make(bson.D, 0, len(obj))

	for _, m := range obj {
		decoded, err := Decode(m.Value)
		if err != nil {
			return nil, err
		}

		doc = append(doc, bson.E{Key: m.Key, Value: decoded})
	}

	return doc, nil
}

// ParseObjectID validates and converts a hex identifier.
func ParseObjectID(value any) (bson.ObjectID, error) {
	hex, ok := value.(string)
	if !ok || len(hex) != 24 {
		return bson.NilObjectID, newDecodeError(ErrMalformedIdentifier, value)
	}

	oid, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.NilObjectID, newDecodeError(ErrMalformedIdentifier, value)
	}

	return oid, nil
}

func parseDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
	case json.Number:
		// Milliseconds since the epoch, as accepted by new Date(n).
		if ms, err := v.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	}

	return time.Time{}, newDecodeError(ErrMalformedInstant, value)
}

func parseRegex(value any) (bson.Regex, error) {
	if m, isMap := value.(map[string]any); isMap {
		value = sortedObject(m)
	}

	obj, ok := value.(Object)
	if !ok {
		return bson.Regex{}, newDecodeError(ErrMalformedPattern, value)
	}

	patternValue, _ := obj.Get(PatternKey)

	pattern, ok := patternValue.(string)
	if !ok {
		return bson.Regex{}, newDecodeError(ErrMalformedPattern, patternValue)
	}

	var flags string

	if flagsValue, ok := obj.Get(FlagsKey); ok && flagsValue != nil {
		flags, ok = flagsValue.(string)
		if !ok {
			return bson.Regex{}, newDecodeError(ErrMalformedPattern, flagsValue)
		}
	}

	for i, r := range flags {
		if !strings.ContainsRune(regexFlags, r) || strings.ContainsRune(flags[i+1:], r) {
			return bson.Regex{}, newDecodeError(ErrMalformedPattern, flags)
		}
	}

	return bson.Regex{Pattern: pattern, Options: flags}, nil
}

// decodeNumber follows how the browser's numbers end up in BSON: integral
// values in int32 range are stored as int32, everything else as a double.
func decodeNumber(n json.Number) any {
	s := n.String()

	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 32); err == nil {
			return int32(i)
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}

	if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 && !(f == 0 && math.Signbit(f)) {
		return int32(f)
	}

	return f
}

// raw converts a wire value structurally without interpreting tags, so that
// unknown envelopes reach the store unchanged.
func raw(w any) any {
	switch val := w.(type) {
	case Object:
		doc := make(bson.D, 0, len(val))
		for _, m := range val {
			doc = append(doc, bson.E{Key: m.Key, Value: raw(m.Value)})
		}

		return doc
	case []any:
		arr := make(bson.A, 0, len(val))
		for _, item := range val {
			arr = append(arr, raw(item))
		}

		return arr
	case json.Number:
		return decodeNumber(val)
	default:
		return w
	}
}

func sortedObject(m map[string]any) Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	obj := make(Object, 0, len(keys))
	for _, k := range keys {
		obj = append(obj, Member{Key: k, Value: m[k]})
	}

	return obj
}
