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

func (s *Storage) InsertMerchant(ctx context.Context, merchant ledger.Merchant) (err error) {
	model := merchantFromLedger(merchant)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to insert merchant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: merchant %s", ledger.ErrAlreadyExists, merchant.ID)
	}
	return nil
}

func findMerchant(db *gorm.DB, id string) (merchant ledger.Merchant, err error) {
	var model Merchant
	err = db.Take(&model, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return merchant, fmt.Errorf("%w: merchant %s", ledger.ErrNotFound, id)
	case err != nil:
		return merchant, fmt.Errorf("failed to get merchant: %w", err)
	default:
		return model.ledger(), nil
	}
}

func (s *Storage) Merchant(ctx context.Context, id string) (merchant ledger.Merchant, err error) {
	return findMerchant(s.db.WithContext(ctx), id)
}

func (s *Storage) UpdateMerchantStatus(ctx context.Context, id string, status ledger.MerchantStatus, at time.Time) (merchant ledger.Merchant, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		result := tx.Model(&Merchant{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": string(status), "updated_at": at})
		if result.Error != nil {
			return fmt.Errorf("failed to update merchant: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: merchant %s", ledger.ErrNotFound, id)
		}
		merchant, err = findMerchant(tx, id)
		return err
	})
	if err != nil {
		return ledger.Merchant{}, err
	}
	return merchant, nil
}
