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

package store

import (
	"errors"
	"fmt"
)

// ErrorKind tells callers how to react to a failed store call without having
// to look at driver specific codes or messages.
type ErrorKind int

const (
	// KindOther is any failure not covered by the kinds below.
	KindOther ErrorKind = iota
	// KindAuthorization means the credentials were rejected or lack a
	// privilege. A connection that only fails this way is useless to the
	// console.
	KindAuthorization
	// KindNetwork means the server could not be reached.
	KindNetwork
	// KindTimeout means the call ran out of time.
	KindTimeout
	// KindNotFound means the addressed database or collection does not exist.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not found"
	default:
		return "other"
	}
}

// ErrNoDocument is returned by FindOne when no document matches.
var ErrNoDocument = errors.New("no document matches the filter")

// Error wraps a failure reported by the server together with its kind and,
// when the server sent one, the numeric code and code name.
type Error struct {
	Err  error
	Name string
	Code int32
	Kind ErrorKind
}

// Error returns the message of the wrapped error.
func (e *Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with kind. A nil err stays nil.
func NewError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Err: err, Kind: kind}
}

// Errorf formats a new error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Err: fmt.Errorf(format, args...), Kind: kind}
}

// KindOf returns the kind attached to err, KindOther when there is none.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	return KindOther
}

// IsKind is a convenience checker for a single kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error

	return errors.As(err, &se) && se.Kind == kind
}

// CodeOf returns the server error code and code name carried by err, if any.
func CodeOf(err error) (int32, string) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, se.Name
	}

	return 0, ""
}
