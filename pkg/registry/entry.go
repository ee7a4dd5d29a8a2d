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

package registry

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

// ConnectionError is the recorded reason a server is not usable.
type ConnectionError struct {
	Code    int32           `json:"code,omitempty"`
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Kind    store.ErrorKind `json:"-"`
}

func (e *ConnectionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Default names used when the store did not report a code name.
const (
	errorNameConnection = "MongoError"
	errorNameServer     = "ServerError"
)

func newConnectionError(err error, defaultName string) *ConnectionError {
	code, name := store.CodeOf(err)
	if name == "" {
		name = defaultName
	}

	return &ConnectionError{
		Code:    code,
		Name:    name,
		Message: err.Error(),
		Kind:    store.KindOf(err),
	}
}

// DatabaseSummary is one database in a server listing.
type DatabaseSummary struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Empty bool   `json:"empty"`
}

// ServerEntry is one server in the listing. Usable servers carry their size
// and databases, all others the error that made them unusable.
type ServerEntry struct {
	Name      string
	Size      int64
	Databases []DatabaseSummary
	Error     *ConnectionError
}

// MarshalJSON renders {name, size, databases} or {name, error}.
func (e ServerEntry) MarshalJSON() ([]byte, error) {
	if e.Error != nil {
		return json.Marshal(struct {
			Name  string           `json:"name"`
			Error *ConnectionError `json:"error"`
		}{e.Name, e.Error})
	}

	databases := e.Databases
	if databases == nil {
		databases = []DatabaseSummary{}
	}

	return json.Marshal(struct {
		Name      string            `json:"name"`
		Size      int64             `json:"size"`
		Databases []DatabaseSummary `json:"databases"`
	}{e.Name, e.Size, databases})
}

// UnmarshalJSON accepts both shapes written by MarshalJSON.
func (e *ServerEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string            `json:"name"`
		Size      int64             `json:"size"`
		Databases []DatabaseSummary `json:"databases"`
		Error     *ConnectionError  `json:"error"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = ServerEntry{Name: raw.Name, Size: raw.Size, Databases: raw.Databases, Error: raw.Error}

	return nil
}
