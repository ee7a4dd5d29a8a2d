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
	"bytes"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

func matches(doc, filter bson.D) (bool, error) {
	for _, cond := range filter {
		if strings.HasPrefix(cond.Key, "$") {
			return false, store.Errorf(store.KindOther, "unknown top level operator: %s", cond.Key)
		}

		value, found := lookup(doc, cond.Key)

		ok, err := matchValue(value, found, cond.Value)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

func matchValue(value any, found bool, cond any) (bool, error) {
	if ops, ok := cond.(bson.D); ok && len(ops) > 0 && strings.HasPrefix(ops[0].Key, "$") {
		for _, op := range ops {
			ok, err := matchOperator(value, found, op.Key, op.Value)
			if err != nil || !ok {
				return false, err
			}
		}

		return true, nil
	}

	if re, ok := cond.(bson.Regex); ok {
		return matchRegex(value, re)
	}

	return equalOrContains(value, found, cond), nil
}

func matchOperator(value any, found bool, op string, arg any) (bool, error) {
	switch op {
	case "$eq":
		return equalOrContains(value, found, arg), nil
	case "$ne":
		return !equalOrContains(value, found, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !found {
			return false, nil
		}

		c, ok := compare(value, arg)
		if !ok {
			return false, nil
		}

		switch op {
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case "$in":
		candidates, ok := arg.(bson.A)
		if !ok {
			return false, store.Errorf(store.KindOther, "$in needs an array")
		}

		for _, candidate := range candidates {
			if equalOrContains(value, found, candidate) {
				return true, nil
			}
		}

		return false, nil
	case "$exists":
		want := truthy(arg)

		return found == want, nil
	case "$regex":
		pattern, _ := arg.(string)

		return matchRegex(value, bson.Regex{Pattern: pattern})
	default:
		return false, store.Errorf(store.KindOther, "unknown operator: %s", op)
	}
}

func equalOrContains(value any, found bool, want any) bool {
	if want == nil {
		return !found || value == nil
	}

	if !found {
		return false
	}

	if c, ok := compare(value, want); ok && c == 0 {
		return true
	}

	if arr, ok := value.(bson.A); ok {
		for _, item := range arr {
			if c, ok := compare(item, want); ok && c == 0 {
				return true
			}
		}
	}

	return false
}

func matchRegex(value any, re bson.Regex) (bool, error) {
	s, ok := value.(string)
	if !ok {
		return false, nil
	}

	var prefix string

	for _, flag := range re.Options {
		if strings.ContainsRune("ims", flag) {
			prefix += string(flag)
		}
	}

	pattern := re.Pattern
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return false, store.NewError(store.KindOther, err)
	}

	return compiled.MatchString(s), nil
}

// compare orders two values of the same family. Numbers of different BSON
// types compare by value. The second result is false when the values cannot
// be ordered against each other.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}

		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}

		return ta.Compare(tb), true
	}

	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0, false
		}

		return strings.Compare(va, vb), true
	case bson.ObjectID:
		vb, ok := b.(bson.ObjectID)
		if !ok {
			return 0, false
		}

		return bytes.Compare(va[:], vb[:]), true
	case bool:
		vb, ok := b.(bool)
		if !ok {
			return 0, false
		}

		switch {
		case va == vb:
			return 0, true
		case !va:
			return -1, true
		default:
			return 1, true
		}
	}

	if reflect.DeepEqual(a, b) {
		return 0, true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case bson.DateTime:
		return t.Time(), true
	default:
		return time.Time{}, false
	}
}

func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}

	if f, ok := toFloat(v); ok {
		return f != 0
	}

	return v != nil
}

// lookup resolves a dotted path inside doc.
func lookup(doc bson.D, path string) (any, bool) {
	var current any = doc

	for _, part := range strings.Split(path, ".") {
		d, ok := current.(bson.D)
		if !ok {
			return nil, false
		}

		found := false

		for _, e := range d {
			if e.Key == part {
				current = e.Value
				found = true

				break
			}
		}

		if !found {
			return nil, false
		}
	}

	return current, true
}

// setPath sets a dotted path inside doc, creating intermediate documents, and
// returns the updated document.
func setPath(doc bson.D, path string, value any) bson.D {
	key, rest, nested := strings.Cut(path, ".")

	for i, e := range doc {
		if e.Key != key {
			continue
		}

		if nested {
			child, _ := e.Value.(bson.D)
			doc[i].Value = setPath(child, rest, value)
		} else {
			doc[i].Value = value
		}

		return doc
	}

	if nested {
		return append(doc, bson.E{Key: key, Value: setPath(bson.D{}, rest, value)})
	}

	return append(doc, bson.E{Key: key, Value: value})
}

func sortDocs(docs []bson.D, order bson.D) {
	if len(order) == 0 {
		return
	}

	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range order {
			a, foundA := lookup(docs[i], key.Key)
			b, foundB := lookup(docs[j], key.Key)

			var c int

			switch {
			case !foundA && !foundB:
				c = 0
			case !foundA:
				c = -1
			case !foundB:
				c = 1
			default:
				c, _ = compare(a, b)
			}

			if f, ok := toFloat(key.Value); ok && f < 0 {
				c = -c
			}

			if c != 0 {
				return c < 0
			}
		}

		return false
	})
}

// project applies an inclusion or exclusion projection on top-level fields.
// _id is kept unless it is excluded explicitly.
func project(doc bson.D, projection bson.D) bson.D {
	if len(projection) == 0 {
		return doc
	}

	include := map[string]bool{}
	inclusive := false

	for _, p := range projection {
		include[p.Key] = truthy(p.Value)
		if p.Key != "_id" && include[p.Key] {
			inclusive = true
		}
	}

	out := bson.D{}

	for _, e := range doc {
		want, listed := include[e.Key]

		switch {
		case e.Key == "_id":
			if !listed || want {
				out = append(out, e)
			}
		case inclusive:
			if want {
				out = append(out, e)
			}
		default:
			if !listed || want {
				out = append(out, e)
			}
		}
	}

	return out
}

func copyDoc(doc bson.D) bson.D {
	if doc == nil {
		return nil
	}

	out := make(bson.D, len(doc))
	for i, e := range doc {
		out[i] = bson.E{Key: e.Key, Value: copyValue(e.Value)}
	}

	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case bson.D:
		return copyDoc(val)
	case bson.A:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}

		return out
	case []any:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}

		return out
	case bson.M:
		out := make(bson.D, 0, len(val))

		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			out = append(out, bson.E{Key: k, Value: copyValue(val[k])})
		}

		return out
	default:
		return v
	}
}
