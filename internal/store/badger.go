// SPDX-License-Identifier: MIT

package store

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps counters in a badger KV database. SyncWrites is on so
// every SetInt reaches disk before it returns.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the counter database under dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) GetInt(key string, fallback int64) (int64, error) {
	var out int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt counter %q: %w", key, err)
			}
			out = parsed
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	return out, nil
}

func (s *BadgerStore) SetInt(key string, value int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(strconv.FormatInt(value, 10)))
	})
}

func (s *BadgerStore) Close() error { return s.db.Close() }
