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

// Package hosts persists the list of server addresses the console connects to.
package hosts

import (
	"strings"
	"time"

	"github.com/united-manufacturing-hub/docconsole/pkg/serveraddr"
)

// Store is the configured-server list.
type Store interface {
	// GetAll returns every stored address.
	GetAll() ([]string, error)
	// Add stores address. Adding an address twice keeps a single record.
	Add(address string) error
	// Remove deletes every address whose server name is name, or name with
	// the default port added.
	Remove(name string) error
	Close() error
}

// Record is one stored address.
type Record struct {
	Address string    `msgpack:"address"`
	AddedAt time.Time `msgpack:"added_at"`
}

// SplitDefaults splits a ;-separated address list and drops blank entries.
func SplitDefaults(list string) []string {
	var out []string

	for _, part := range strings.Split(list, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

func normalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", serveraddr.ErrEmptyAddress
	}

	return address, nil
}

// matchesName reports whether address belongs to the server called name.
// Addresses that do not parse only match literally.
func matchesName(address, name string) bool {
	if address == name {
		return true
	}

	serverName, err := serveraddr.Name(address)
	if err != nil {
		return false
	}

	return serverName == name || serverName == serveraddr.WithDefaultPort(name)
}
