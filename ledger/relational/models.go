package relational

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"ledgerly.dev/ledger/ledger"
)

type Merchant struct {
	ID        string    `gorm:"primaryKey;size:191"`
	Name      string    `gorm:"not null"`
	Status    string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (Merchant) TableName() string { return "merchants" }

type Transaction struct {
	ID         string `gorm:"primaryKey;size:191"`
	MerchantID string `gorm:"size:191;not null;index:idx_transactions_merchant_created,priority:1"`
	Amount     int64  `gorm:"not null"`
	Currency   string `gorm:"size:16;not null"`
	State      string `gorm:"size:16;not null;index:idx_transactions_state_expires,priority:1"`
	// Ordering column of every listing
	CreatedAt         time.Time  `gorm:"not null;autoCreateTime:false;index:idx_transactions_merchant_created,priority:2;index:idx_transactions_created"`
	UpdatedAt         time.Time  `gorm:"not null;autoUpdateTime:false"`
	ExpiresAt         *time.Time `gorm:"index:idx_transactions_state_expires,priority:2"`
	Metadata          datatypes.JSON
	ExternalReference *string
	// Set together with the outcome; nil means no outcome
	ReportedAt      *time.Time
	OutcomeMetadata datatypes.JSON
}

func (Transaction) TableName() string { return "transactions" }

func merchantFromLedger(m ledger.Merchant) Merchant {
	return Merchant{
		ID:        m.ID,
		Name:      m.Name,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (m *Merchant) ledger() ledger.Merchant {
	return ledger.Merchant{
		ID:        m.ID,
		Name:      m.Name,
		Status:    ledger.MerchantStatus(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func transactionFromLedger(tx ledger.Transaction) (model Transaction, err error) {
	model = Transaction{
		ID:         tx.ID,
		MerchantID: tx.MerchantID,
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		State:      string(tx.State),
		CreatedAt:  tx.CreatedAt,
		UpdatedAt:  tx.UpdatedAt,
		ExpiresAt:  tx.ExpiresAt,
	}
	model.Metadata, err = encodeMetadata(tx.Metadata)
	if err != nil {
		return model, err
	}
	if tx.Outcome != nil {
		model.ExternalReference = tx.Outcome.ExternalReference
		model.ReportedAt = &tx.Outcome.ReportedAt
		model.OutcomeMetadata, err = encodeMetadata(tx.Outcome.Metadata)
		if err != nil {
			return model, err
		}
	}
	return model, nil
}

func (model *Transaction) ledger() (tx ledger.Transaction, err error) {
	tx = ledger.Transaction{
		ID:         model.ID,
		MerchantID: model.MerchantID,
		Amount:     model.Amount,
		Currency:   model.Currency,
		State:      ledger.State(model.State),
		CreatedAt:  model.CreatedAt.UTC(),
		UpdatedAt:  model.UpdatedAt.UTC(),
	}
	if model.ExpiresAt != nil {
		expiresAt := model.ExpiresAt.UTC()
		tx.ExpiresAt = &expiresAt
	}
	tx.Metadata, err = decodeMetadata(model.Metadata)
	if err != nil {
		return tx, err
	}
	if model.ReportedAt != nil {
		tx.Outcome = &ledger.Outcome{
			ExternalReference: model.ExternalReference,
			ReportedAt:        model.ReportedAt.UTC(),
		}
		tx.Outcome.Metadata, err = decodeMetadata(model.OutcomeMetadata)
		if err != nil {
			return tx, err
		}
	}
	return tx, nil
}

func encodeMetadata(m ledger.Metadata) (j datatypes.JSON, err error) {
	if len(m) == 0 {
		return nil, nil
	}
	j, err = json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return j, nil
}

func decodeMetadata(j datatypes.JSON) (m ledger.Metadata, err error) {
	if len(j) == 0 || string(j) == "null" {
		return nil, nil
	}
	err = json.Unmarshal(j, &m)
	if err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}
