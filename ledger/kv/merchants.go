package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"ledgerly.dev/ledger/ledger"
)

func getMerchant(txn *badger.Txn, id string) (merchant ledger.Merchant, err error) {
	merchant, err = get[ledger.Merchant](txn, MerchantKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return merchant, fmt.Errorf("%w: merchant %s", ledger.ErrNotFound, id)
	}
	return merchant, err
}

func (s *Storage) InsertMerchant(ctx context.Context, merchant ledger.Merchant) (err error) {
	return s.update(ctx, func(txn *badger.Txn) (err error) {
		key := MerchantKey(merchant.ID)
		found, err := exists(txn, key)
		if err != nil {
			return fmt.Errorf("failed to check merchant: %w", err)
		}
		if found {
			return fmt.Errorf("%w: merchant %s", ledger.ErrAlreadyExists, merchant.ID)
		}
		return set(txn, key, merchant)
	})
}

func (s *Storage) Merchant(ctx context.Context, id string) (merchant ledger.Merchant, err error) {
	err = s.db.View(func(txn *badger.Txn) (err error) {
		merchant, err = getMerchant(txn, id)
		return err
	})
	return merchant, err
}

func (s *Storage) UpdateMerchantStatus(ctx context.Context, id string, status ledger.MerchantStatus, at time.Time) (merchant ledger.Merchant, err error) {
	err = s.update(ctx, func(txn *badger.Txn) (err error) {
		merchant, err = getMerchant(txn, id)
		if err != nil {
			return err
		}
		merchant.Status = status
		merchant.UpdatedAt = at
		return set(txn, MerchantKey(id), merchant)
	})
	if err != nil {
		return ledger.Merchant{}, err
	}
	return merchant, nil
}
