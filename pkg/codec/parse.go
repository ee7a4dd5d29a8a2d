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
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ParseWire parses free text as JSON without interpreting tags. Blank text
// yields an empty Object. Syntax errors wrap ErrInvalidInput.
func ParseWire(text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return Object{}, nil
	}

	value, err := ParseJSON([]byte(text))
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrInvalidInput, err), Literal: text}
	}

	return value, nil
}

// ParseWireOrEmpty is ParseWire for the query, sort and projection boxes: on
// invalid input it returns an empty Object together with the error so the
// caller can show a warning instead of failing the page.
func ParseWireOrEmpty(text string) (any, error) {
	value, err := ParseWire(text)
	if err != nil {
		return Object{}, err
	}

	return value, nil
}

// ParseDocumentOrEmpty parses one of the free-text query, sort or projection
// boxes into a document. Text that is not valid JSON, or not a JSON object,
// yields an empty document together with an error wrapping ErrInvalidInput,
// which callers surface as a warning. Malformed literals fail with a nil
// document.
func ParseDocumentOrEmpty(text string) (bson.D, error) {
	value, err := ParseWire(text)
	if err != nil {
		return bson.D{}, err
	}

	if _, ok := value.(Object); !ok {
		return bson.D{}, newDecodeError(ErrInvalidInput, text)
	}

	doc, err := DecodeDocument(value)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// ParseInput parses free text as JSON and decodes it.
func ParseInput(text string) (any, error) {
	value, err := ParseWire(text)
	if err != nil {
		return nil, err
	}

	return Decode(value)
}

// DecodeDocument decodes a wire value that must be an object. A nil value
// yields an empty document.
func DecodeDocument(w any) (bson.D, error) {
	if w == nil {
		return bson.D{}, nil
	}

	decoded, err := Decode(w)
	if err != nil {
		return nil, err
	}

	doc, ok := decoded.(bson.D)
	if !ok {
		return nil, newDecodeError(ErrInvalidInput, fmt.Sprintf("expected an object, got %T", w))
	}

	return doc, nil
}

// Marshal encodes v and renders it as JSON.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(Encode(v))
}

// Unmarshal parses JSON and decodes it.
func Unmarshal(data []byte) (any, error) {
	value, err := ParseJSON(data)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrInvalidInput, err), Literal: string(data)}
	}

	return Decode(value)
}
