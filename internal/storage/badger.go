package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStorage implements Storage using an embedded BadgerDB. It is the
// alternative to SQLite for deployments that want a pure key/value backend.
type BadgerStorage struct {
	db       *badger.DB
	maxBytes int64 // 0 means unlimited
}

// NewBadgerStorage opens or creates a Badger database in the given directory.
func NewBadgerStorage(dir string, maxBytes int64) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // suppress Badger's internal logging
	opts.ValueLogFileSize = 16 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BadgerStorage{db: db, maxBytes: maxBytes}, nil
}

func (s *BadgerStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
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
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *BadgerStorage) Set(ctx context.Context, key string, value []byte) error {
	if s.maxBytes > 0 {
		lsm, vlog := s.db.Size()
		if lsm+vlog+int64(len(value)+len(key)) > s.maxBytes {
			return fmt.Errorf("set %s: %w", key, ErrStorageFull)
		}
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		if errors.Is(err, badger.ErrTxnTooBig) {
			return fmt.Errorf("set %s: %w", key, ErrStorageFull)
		}
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStorage) Remove(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", prefix, err)
	}
	return keys, nil
}

func (s *BadgerStorage) SizeBytes(ctx context.Context) (int64, error) {
	lsm, vlog := s.db.Size()
	return lsm + vlog, nil
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}
