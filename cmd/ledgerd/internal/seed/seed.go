package seed

import (
	"context"
	"errors"
	"fmt"

	_ "embed"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"ledgerly.dev/ledger/api"
	"ledgerly.dev/ledger/ledger"
)

//go:embed seed.yaml
var contents []byte

type (
	Transaction struct {
		ID        string `yaml:"id"`
		Amount    int64  `yaml:"amount"`
		Currency  string `yaml:"currency"`
		Metadata  string `yaml:"metadata"`
		Reference string `yaml:"reference"`
	}
	Data struct {
		Merchant struct {
			ID     string                `yaml:"id"`
			Name   string                `yaml:"name"`
			Status ledger.MerchantStatus `yaml:"status"`
		} `yaml:"merchant"`
		// Seeded as settled
		Transactions []Transaction `yaml:"transactions"`
	}
)

func Load() (data Data, err error) {
	err = yaml.Unmarshal(contents, &data)
	if err != nil {
		return data, fmt.Errorf("failed to decode seed: %w", err)
	}
	return data, nil
}

// Apply writes the demo merchant and its settled transactions unless the
// merchant is already present. Returns whether anything was written.
func Apply(ctx context.Context, l *ledger.Ledger, logger *zap.Logger) (applied bool, err error) {
	data, err := Load()
	if err != nil {
		return false, err
	}

	_, err = l.Merchant(ctx, data.Merchant.ID)
	switch {
	case err == nil:
		logger.Debug("seed already applied", zap.String("merchant", data.Merchant.ID))
		return false, nil
	case !errors.Is(err, ledger.ErrNotFound):
		return false, fmt.Errorf("failed to check seed merchant: %w", err)
	}

	_, err = l.RegisterMerchant(ctx, ledger.RegisterMerchant{
		ID:     data.Merchant.ID,
		Name:   data.Merchant.Name,
		Status: data.Merchant.Status,
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed merchant: %w", err)
	}

	for _, seeded := range data.Transactions {
		tx, err := l.CreateTransaction(ctx, ledger.CreateTransaction{
			ID:         seeded.ID,
			MerchantID: data.Merchant.ID,
			Amount:     seeded.Amount,
			Currency:   seeded.Currency,
			Metadata:   ledger.Metadata{api.NoteKey: seeded.Metadata},
		})
		if err != nil {
			return true, fmt.Errorf("failed to seed transaction %s: %w", seeded.ID, err)
		}
		reference := seeded.Reference
		_, err = l.AssertOutcome(ctx, ledger.AssertOutcome{
			TransactionID:     tx.ID,
			Status:            ledger.StateSuccess,
			ExternalReference: &reference,
			ReportedAt:        &tx.CreatedAt,
		})
		if err != nil {
			return true, fmt.Errorf("failed to settle seeded transaction %s: %w", seeded.ID, err)
		}
	}
	logger.Info("seeded demo data",
		zap.String("merchant", data.Merchant.ID),
		zap.Int("transactions", len(data.Transactions)),
	)
	return true, nil
}
