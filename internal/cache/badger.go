package cache

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

type badgerStore struct {
	db *badger.DB
}

func newBadgerStore(path string) (*badgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	return &badgerStore{db: db}, nil
}

func badgerKey(kind Kind, key string) []byte {
	return []byte(string(kind) + "/" + key)
}

func (s *badgerStore) Get(ctx context.Context, kind Kind, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(kind, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	return value, true, nil
}

func (s *badgerStore) Put(ctx context.Context, kind Kind, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(kind, key), value)
	})
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
