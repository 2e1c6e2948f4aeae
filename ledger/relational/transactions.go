package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"ledgerly.dev/ledger/ledger"
)

func (s *Storage) InsertTransaction(ctx context.Context, tx ledger.Transaction) (err error) {
	model, err := transactionFromLedger(tx)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) (err error) {
		// FOR SHARE keeps the merchant status fixed until commit. sqlite ignores it
		// and serializes writers instead.
		merchant, err := findMerchant(db.Clauses(clause.Locking{Strength: "SHARE"}), tx.MerchantID)
		if err != nil {
			return err
		}
		if merchant.Status != ledger.MerchantActive {
			return fmt.Errorf("%w: merchant %s is %s", ledger.ErrMerchantInactive, merchant.ID, merchant.Status)
		}

		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if result.Error != nil {
			return fmt.Errorf("failed to insert transaction: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: transaction %s", ledger.ErrAlreadyExists, tx.ID)
		}
		return nil
	})
}

func findTransaction(db *gorm.DB, id string) (tx ledger.Transaction, err error) {
	var model Transaction
	err = db.Take(&model, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
	case err != nil:
		return tx, fmt.Errorf("failed to get transaction: %w", err)
	default:
		return model.ledger()
	}
}

func (s *Storage) Transaction(ctx context.Context, id string) (tx ledger.Transaction, err error) {
	return findTransaction(s.db.WithContext(ctx), id)
}

func (s *Storage) Transactions(ctx context.Context, filter ledger.Filter) (txs []ledger.Transaction, err error) {
	query := s.db.WithContext(ctx).Model(&Transaction{})
	if filter.MerchantID != "" {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.State != "" {
		query = query.Where("state = ?", string(filter.State))
	}

	var models []Transaction
	err = query.Order("created_at ASC").Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs = make([]ledger.Transaction, 0, len(models))
	for _, model := range models {
		tx, err := model.ledger()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Transition is a single conditional UPDATE; the row count tells whether this call won
func (s *Storage) Transition(ctx context.Context, t ledger.Transition) (tx ledger.Transaction, applied bool, err error) {
	values := map[string]any{
		"state":              string(t.To),
		"updated_at":         t.At,
		"external_reference": nil,
		"reported_at":        nil,
		"outcome_metadata":   nil,
	}
	if t.Outcome != nil {
		metadata, err := encodeMetadata(t.Outcome.Metadata)
		if err != nil {
			return tx, false, err
		}
		values["external_reference"] = t.Outcome.ExternalReference
		values["reported_at"] = t.Outcome.ReportedAt
		values["outcome_metadata"] = metadata
	}

	db := s.db.WithContext(ctx)
	result := db.Model(&Transaction{}).
		Where("id = ? AND state = ?", t.ID, string(ledger.StatePending)).
		Updates(values)
	if result.Error != nil {
		return tx, false, fmt.Errorf("failed to update transaction: %w", result.Error)
	}

	// Terminal records never change again, so this read returns what the winner wrote
	tx, err = findTransaction(db, t.ID)
	if err != nil {
		return ledger.Transaction{}, false, err
	}
	return tx, result.RowsAffected == 1, nil
}

func (s *Storage) ExpiredCandidates(ctx context.Context, now time.Time) (ids []string, err error) {
	err = s.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("state = ? AND expires_at IS NOT NULL AND expires_at <= ?", string(ledger.StatePending), now).
		Order("expires_at ASC").
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired transactions: %w", err)
	}
	return ids, nil
}
