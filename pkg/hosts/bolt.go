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
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/docconsole/pkg/logger"
)

var (
	hostsBucket = []byte("hosts")
	metaBucket  = []byte("meta")
	seededKey   = []byte("seeded")
)

// BoltStore keeps the list in a bbolt file, one msgpack encoded Record per
// address.
type BoltStore struct {
	db  *bbolt.DB
	log *zap.SugaredLogger
	now func() time.Time
}

// OpenBolt opens or creates the file at path. The first time a file is
// opened it is seeded with defaults.
func OpenBolt(path string, defaults []string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open hosts database %s: %w", path, err)
	}

	s := &BoltStore{db: db, log: logger.For(logger.ComponentHosts), now: time.Now}

	err = db.Update(func(tx *bbolt.Tx) error {
		hosts, err := tx.CreateBucketIfNotExists(hostsBucket)
		if err != nil {
			return err
		}

		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}

		if meta.Get(seededKey) != nil {
			return nil
		}

		for _, address := range defaults {
			if err := s.put(hosts, address); err != nil {
				return err
			}
		}

		s.log.Infow("Seeded hosts database", "path", path, "hosts", defaults)

		return meta.Put(seededKey, []byte{1})
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to initialize hosts database %s: %w", path, err)
	}

	return s, nil
}

func (s *BoltStore) GetAll() ([]string, error) {
	var addresses []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(hostsBucket).ForEach(func(_, v []byte) error {
			var rec Record
			if err := msgpack.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode host record: %w", err)
			}

			addresses = append(addresses, rec.Address)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return addresses, nil
}

func (s *BoltStore) Add(address string) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.put(tx.Bucket(hostsBucket), address)
	})
}

// put upserts address. An existing record keeps its AddedAt.
func (s *BoltStore) put(bucket *bbolt.Bucket, address string) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	if bucket.Get([]byte(address)) != nil {
		return nil
	}

	raw, err := msgpack.Marshal(Record{Address: address, AddedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode host record: %w", err)
	}

	return bucket.Put([]byte(address), raw)
}

func (s *BoltStore) Remove(name string) error {
	if name == "" {
		return errors.New("empty server name")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(hostsBucket)

		var matched [][]byte

		err := bucket.ForEach(func(k, _ []byte) error {
			if matchesName(string(k), name) {
				matched = append(matched, append([]byte(nil), k...))
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range matched {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
