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
	"errors"
	"fmt"
)

var (
	// ErrMalformedIdentifier is returned for an ObjectId that is not exactly 24 hex characters.
	ErrMalformedIdentifier = errors.New("malformed identifier")
	// ErrMalformedInstant is returned for a Date that cannot be parsed.
	ErrMalformedInstant = errors.New("malformed instant")
	// ErrMalformedPattern is returned for a RegExp with a bad shape or unknown flags.
	ErrMalformedPattern = errors.New("malformed pattern")
	// ErrInvalidInput is returned when free-text input is not valid JSON.
	ErrInvalidInput = errors.New("invalid input")
)

// DecodeError carries the offending literal next to one of the sentinel errors above.
type DecodeError struct {
	Err     error
	Literal string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err, e.Literal)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(kind error, literal any) error {
	s, ok := literal.(string)
	if !ok {
		s = fmt.Sprint(literal)
	}

	return &DecodeError{Err: kind, Literal: s}
}
