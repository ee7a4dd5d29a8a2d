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

package hosts

import (
	"sort"
	"sync"
)

// MemoryStore keeps the list in memory.
type MemoryStore struct {
	mu        sync.RWMutex
	addresses map[string]struct{}
}

// NewMemoryStore returns a store holding defaults.
func NewMemoryStore(defaults ...string) *MemoryStore {
	s := &MemoryStore{addresses: make(map[string]struct{})}

	for _, address := range defaults {
		_ = s.Add(address)
	}

	return s
}

func (s *MemoryStore) GetAll() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.addresses))
	for address := range s.addresses {
		out = append(out, address)
	}

	sort.Strings(out)

	return out, nil
}

func (s *MemoryStore) Add(address string) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.addresses[address] = struct{}{}

	return nil
}

func (s *MemoryStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for address := range s.addresses {
		if matchesName(address, name) {
			delete(s.addresses, address)
		}
	}

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
