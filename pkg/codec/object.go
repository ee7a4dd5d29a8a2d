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
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Member is a single key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps the order of its members.
type Object []Member

// Get returns the value stored under key. Like JSON.parse, the last
// occurrence wins when a key is repeated.
func (o Object) Get(key string) (any, bool) {
	for i := len(o) - 1; i >= 0; i-- {
		if o[i].Key == key {
			return o[i].Value, true
		}
	}

	return nil, false
}

// MarshalJSON writes the members in insertion order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')

		if err := writeValue(&buf, m.Value); err != nil {
			return nil, fmt.Errorf("failed to marshal member %q: %w", m.Key, err)
		}
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// writeValue marshals v like json.Marshal, except that floats are written the
// way JSON.stringify writes them.
func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case float64:
		buf.Write(appendFloat(buf.AvailableBuffer(), val))

		return nil
	case []any:
		buf.WriteByte('[')

		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := writeValue(buf, item); err != nil {
				return err
			}
		}

		buf.WriteByte(']')

		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	buf.Write(data)

	return nil
}

// appendFloat formats f like JavaScript's Number.prototype.toString. NaN and
// the infinities become null, as in JSON.stringify.
func appendFloat(b []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(b, "null"...)
	}

	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}

	b = strconv.AppendFloat(b, f, format, -1, 64)

	if format == 'e' {
		// e-07 becomes e-7
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}

	return b
}

// UnmarshalJSON parses a JSON object and keeps its member order.
func (o *Object) UnmarshalJSON(data []byte) error {
	value, err := ParseJSON(data)
	if err != nil {
		return err
	}

	obj, ok := value.(Object)
	if !ok {
		return fmt.Errorf("expected a JSON object, got %T", value)
	}

	*o = obj

	return nil
}

// ParseJSON parses a single JSON value into the wire model: Object for
// objects, []any for arrays, json.Number for numbers, and string, bool or nil
// for the remaining scalars.
func ParseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	value, err := readValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}

	return value, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := Object{}

		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}

			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("expected object key, got %v", keyTok)
			}

			value, err := readValue(dec)
			if err != nil {
				return nil, err
			}

			obj = append(obj, Member{Key: key, Value: value})
		}

		if _, err := dec.Token(); err != nil {
			return nil, err
		}

		return obj, nil
	case '[':
		arr := []any{}

		for dec.More() {
			value, err := readValue(dec)
			if err != nil {
				return nil, err
			}

			arr = append(arr, value)
		}

		if _, err := dec.Token(); err != nil {
			return nil, err
		}

		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}
