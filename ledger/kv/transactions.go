package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"ledgerly.dev/ledger/ledger"
)

func getTransaction(txn *badger.Txn, id string) (tx ledger.Transaction, err error) {
	tx, err = get[ledger.Transaction](txn, TransactionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return tx, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
	}
	return tx, err
}

func (s *Storage) InsertTransaction(ctx context.Context, tx ledger.Transaction) (err error) {
	return s.update(ctx, func(txn *badger.Txn) (err error) {
		// Reading the merchant makes a concurrent status change conflict with this commit
		merchant, err := getMerchant(txn, tx.MerchantID)
		if err != nil {
			return err
		}
		if merchant.Status != ledger.MerchantActive {
			return fmt.Errorf("%w: merchant %s is %s", ledger.ErrMerchantInactive, merchant.ID, merchant.Status)
		}

		key := TransactionKey(tx.ID)
		found, err := exists(txn, key)
		if err != nil {
			return fmt.Errorf("failed to check transaction: %w", err)
		}
		if found {
			return fmt.Errorf("%w: transaction %s", ledger.ErrAlreadyExists, tx.ID)
		}

		err = set(txn, key, tx)
		if err != nil {
			return err
		}
		id := []byte(tx.ID)
		err = txn.Set(CreatedKey(tx.CreatedAt, tx.ID), id)
		if err != nil {
			return fmt.Errorf("failed to add created index: %w", err)
		}
		err = txn.Set(MerchantIndexKey(tx.MerchantID, tx.CreatedAt, tx.ID), id)
		if err != nil {
			return fmt.Errorf("failed to add merchant index: %w", err)
		}
		if tx.ExpiresAt != nil {
			err = txn.Set(ExpiryKey(*tx.ExpiresAt, tx.ID), id)
			if err != nil {
				return fmt.Errorf("failed to add expiry index: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) Transaction(ctx context.Context, id string) (tx ledger.Transaction, err error) {
	err = s.db.View(func(txn *badger.Txn) (err error) {
		tx, err = getTransaction(txn, id)
		return err
	})
	return tx, err
}

func (s *Storage) Transactions(ctx context.Context, filter ledger.Filter) (txs []ledger.Transaction, err error) {
	prefix := createdPrefix
	if filter.MerchantID != "" {
		prefix = MerchantPrefix(filter.MerchantID)
	}

	txs = make([]ledger.Transaction, 0)
	err = s.db.View(func(txn *badger.Txn) (err error) {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			err = ctx.Err()
			if err != nil {
				return err
			}

			id := string(it.Item().Key()[len(prefix)+timestampSize:])
			tx, err := getTransaction(txn, id)
			if err != nil {
				return fmt.Errorf("failed to resolve index entry: %w", err)
			}
			if filter.State != "" && tx.State != filter.State {
				continue
			}
			txs = append(txs, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Storage) Transition(ctx context.Context, t ledger.Transition) (tx ledger.Transaction, applied bool, err error) {
	err = s.update(ctx, func(txn *badger.Txn) (err error) {
		applied = false
		tx, err = getTransaction(txn, t.ID)
		if err != nil {
			return err
		}
		if tx.State != ledger.StatePending {
			return nil
		}

		tx.State = t.To
		tx.Outcome = t.Outcome
		tx.UpdatedAt = t.At
		err = set(txn, TransactionKey(tx.ID), tx)
		if err != nil {
			return err
		}
		if tx.ExpiresAt != nil {
			err = txn.Delete(ExpiryKey(*tx.ExpiresAt, tx.ID))
			if err != nil {
				return fmt.Errorf("failed to delete expiry index: %w", err)
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, false, err
	}
	return tx, applied, nil
}

func (s *Storage) ExpiredCandidates(ctx context.Context, now time.Time) (ids []string, err error) {
	err = s.db.View(func(txn *badger.Txn) (err error) {
		options := badger.DefaultIteratorOptions
		options.Prefix = expiryPrefix
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(expiryPrefix); it.Next() {
			err = ctx.Err()
			if err != nil {
				return err
			}

			key := it.Item().Key()
			deadline := ParseTimestamp(key[len(expiryPrefix):])
			if deadline.After(now) {
				break
			}
			ids = append(ids, string(key[len(expiryPrefix)+timestampSize:]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
