package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type CreateTransaction struct {
	ID         string
	MerchantID string
	// Minor currency units
	Amount   int64
	Currency string
	// Nil never expires
	ExpiresAt *time.Time
	Metadata  Metadata
}

func (req *CreateTransaction) transaction(now time.Time) (tx Transaction, err error) {
	tx = Transaction{
		ID:         strings.TrimSpace(req.ID),
		MerchantID: strings.TrimSpace(req.MerchantID),
		Amount:     req.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(req.Currency)),
		State:      StatePending,
		Metadata:   req.Metadata.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = validateID("id", tx.ID)
	if err != nil {
		return Transaction{}, err
	}
	err = validateID("merchantId", tx.MerchantID)
	if err != nil {
		return Transaction{}, err
	}
	if tx.Amount < 0 {
		return Transaction{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidArgument)
	}
	if tx.Currency == "" {
		return Transaction{}, fmt.Errorf("%w: currency is required", ErrInvalidArgument)
	}
	if req.ExpiresAt != nil {
		expiresAt := normalizeTime(*req.ExpiresAt)
		tx.ExpiresAt = &expiresAt
	}
	return tx, nil
}

func (l *Ledger) CreateTransaction(ctx context.Context, req CreateTransaction) (tx Transaction, err error) {
	tx, err = req.transaction(l.Now())
	if err != nil {
		return Transaction{}, err
	}

	err = l.storage.InsertTransaction(ctx, tx)
	if err != nil {
		return Transaction{}, err
	}
	l.logger.Debug("created transaction",
		zap.String("transaction", tx.ID),
		zap.String("merchant", tx.MerchantID),
		zap.Int64("amount", tx.Amount),
		zap.String("currency", tx.Currency),
	)
	l.publish(ctx, Event{Type: EventTransactionCreated, OccurredAt: tx.CreatedAt, Transaction: &tx})
	return tx, nil
}

func (l *Ledger) Transaction(ctx context.Context, id string) (tx Transaction, err error) {
	return l.storage.Transaction(ctx, strings.TrimSpace(id))
}

func (l *Ledger) Transactions(ctx context.Context, filter Filter) (txs []Transaction, err error) {
	filter.MerchantID = strings.TrimSpace(filter.MerchantID)
	if filter.State != "" {
		filter.State, err = ParseState(string(filter.State))
		if err != nil {
			return nil, err
		}
	}
	return l.storage.Transactions(ctx, filter)
}
