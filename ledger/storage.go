package ledger

import (
	"context"
	"time"
)

type (
	// Filter narrows Transactions. Zero values match everything.
	Filter struct {
		MerchantID string
		State      State
	}
	// Transition moves a PENDING transaction to a terminal state
	Transition struct {
		ID      string
		To      State
		Outcome *Outcome
		At      time.Time
	}
)

// Storage is the durable source of truth behind the ledger.
type Storage interface {
	// InsertMerchant fails with ErrAlreadyExists when the id is taken
	InsertMerchant(ctx context.Context, merchant Merchant) (err error)
	Merchant(ctx context.Context, id string) (merchant Merchant, err error)
	UpdateMerchantStatus(ctx context.Context, id string, status MerchantStatus, at time.Time) (merchant Merchant, err error)

	// InsertTransaction checks the merchant and inserts the record atomically.
	// Fails with ErrNotFound, ErrMerchantInactive or ErrAlreadyExists, in that order.
	InsertTransaction(ctx context.Context, tx Transaction) (err error)
	Transaction(ctx context.Context, id string) (tx Transaction, err error)
	// Transactions returns the matches ordered by CreatedAt then ID, read from a single snapshot
	Transactions(ctx context.Context, filter Filter) (txs []Transaction, err error)

	// Transition applies t only if the transaction is still PENDING.
	// applied is false when another writer got there first; tx is then the stored record.
	Transition(ctx context.Context, t Transition) (tx Transaction, applied bool, err error)
	// ExpiredCandidates lists PENDING transactions with ExpiresAt <= now
	ExpiredCandidates(ctx context.Context, now time.Time) (ids []string, err error)

	Close() (err error)
}
