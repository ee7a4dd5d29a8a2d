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
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Wire format tags. The browser uses the exact same names.
const (
	TypeKey    = "$type"
	ValueKey   = "$value"
	PatternKey = "$pattern"
	FlagsKey   = "$flags"

	TypeObjectID = "ObjectId"
	TypeDate     = "Date"
	TypeRegExp   = "RegExp"
)

// DateLayout is the ISO-8601 form produced for dates, identical to JavaScript's
// Date.prototype.toISOString.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Encode converts a native value into its wire form. It never fails: values
// of unknown types are returned as they are.
func Encode(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bson.ObjectID:
		return envelope(TypeObjectID, val.Hex())
	case *bson.ObjectID:
		if val == nil {
			return nil
		}

		return envelope(TypeObjectID, val.Hex())
	case time.Time:
		return envelope(TypeDate, val.UTC().Format(DateLayout))
	case bson.DateTime:
		return Encode(val.Time())
	case bson.Regex:
		return envelope(TypeRegExp, Object{
			{Key: PatternKey, Value: val.Pattern},
			{Key: FlagsKey, Value: val.Options},
		})
	case bson.D:
		obj := make(Object, 0, len(val))
		for _, e := range val {
			obj = append(obj, Member{Key: e.Key, Value: Encode(e.Value)})
		}

		return obj
	case Object:
		obj := make(Object, 0, len(val))
		for _, m := range val {
			obj = append(obj, Member{Key: m.Key, Value: Encode(m.Value)})
		}

		return obj
	case bson.M:
		return encodeMap(val)
	case map[string]any:
		return encodeMap(val)
	case bson.A:
		return encodeSlice(val)
	case []any:
		return encodeSlice(val)
	case []bson.D:
		arr := make([]any, 0, len(val))
		for _, d := range val {
			arr = append(arr, Encode(d))
		}

		return arr
	default:
		return v
	}
}

func envelope(typ string, value any) Object {
	return Object{
		{Key: TypeKey, Value: typ},
		{Key: ValueKey, Value: value},
	}
}

// encodeMap walks an unordered map in sorted key order so the output is stable.
func encodeMap(m map[string]any) Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	obj := make(Object, 0, len(keys))
	for _, k := range keys {
		obj = append(obj, Member{Key: k, Value: Encode(m[k])})
	}

	return obj
}

func encodeSlice(s []any) []any {
	arr := make([]any, 0, len(s))
	for _, v := range s {
		arr = append(arr, Encode(v))
	}

	return arr
}
