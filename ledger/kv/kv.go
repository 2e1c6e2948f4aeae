package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
	"ledgerly.dev/ledger/ledger"
)

const DefaultRetries = 8

type Config struct {
	// Badger database to use. Closed by Storage.Close
	DB *badger.DB
	// Number of times a commit is retried after badger.ErrConflict
	Retries int
}

// Storage implements ledger.Storage on top of badger. Every write runs in a
// single badger transaction, so badger's conflict detection on the keys read
// acts as the compare-and-set of the ledger.
type Storage struct {
	db      *badger.DB
	retries int
}

var _ ledger.Storage = (*Storage)(nil)

func New(config Config) (s *Storage) {
	s = &Storage{db: config.DB, retries: config.Retries}
	if s.retries <= 0 {
		s.retries = DefaultRetries
	}
	return s
}

// Open opens the database at path, in memory when path is empty
func Open(path string, logger *zap.Logger) (db *badger.DB, err error) {
	options := badger.
		DefaultOptions(path).
		WithLogger(NewLogger(logger))
	if path == "" {
		options = options.WithInMemory(true)
	}
	db, err = badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func (s *Storage) Close() (err error) {
	return s.db.Close()
}

// update runs fn in a read-write transaction, retrying on commit conflicts.
// fn may run more than once and must not keep state between runs.
func (s *Storage) update(ctx context.Context, fn func(txn *badger.Txn) error) (err error) {
	for range s.retries + 1 {
		err = ctx.Err()
		if err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("failed to commit after %d attempts: %w", s.retries+1, err)
}

func get[T any](txn *badger.Txn, key []byte) (v T, err error) {
	item, err := txn.Get(key)
	if err != nil {
		return v, err
	}
	err = item.Value(func(val []byte) (err error) {
		return json.Unmarshal(val, &v)
	})
	if err != nil {
		return v, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return v, nil
}

func set(txn *badger.Txn, key []byte, v any) (err error) {
	contents, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	err = txn.Set(key, contents)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// exists reports whether key is present. The read is tracked for conflict detection.
func exists(txn *badger.Txn, key []byte) (found bool, err error) {
	_, err = txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}
