package ledger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type RegisterMerchant struct {
	ID     string
	Name   string
	Status MerchantStatus
}

func (l *Ledger) RegisterMerchant(ctx context.Context, req RegisterMerchant) (merchant Merchant, err error) {
	now := l.Now()
	merchant = Merchant{
		ID:        strings.TrimSpace(req.ID),
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = validateID("id", merchant.ID)
	if err != nil {
		return Merchant{}, err
	}
	if merchant.Name == "" {
		return Merchant{}, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	merchant.Status, err = ParseMerchantStatus(string(req.Status))
	if err != nil {
		return Merchant{}, err
	}

	err = l.storage.InsertMerchant(ctx, merchant)
	if err != nil {
		return Merchant{}, err
	}
	l.logger.Info("registered merchant",
		zap.String("merchant", merchant.ID),
		zap.String("status", string(merchant.Status)),
	)
	l.publish(ctx, Event{Type: EventMerchantRegistered, OccurredAt: now, Merchant: &merchant})
	return merchant, nil
}

func (l *Ledger) Merchant(ctx context.Context, id string) (merchant Merchant, err error) {
	return l.storage.Merchant(ctx, strings.TrimSpace(id))
}

// SetMerchantStatus only writes when the status actually changes
func (l *Ledger) SetMerchantStatus(ctx context.Context, id string, status MerchantStatus) (merchant Merchant, err error) {
	id = strings.TrimSpace(id)
	status, err = ParseMerchantStatus(string(status))
	if err != nil {
		return Merchant{}, err
	}
	merchant, err = l.storage.Merchant(ctx, id)
	if err != nil {
		return Merchant{}, err
	}
	if merchant.Status == status {
		return merchant, nil
	}

	now := l.Now()
	merchant, err = l.storage.UpdateMerchantStatus(ctx, id, status, now)
	if err != nil {
		return Merchant{}, err
	}
	l.logger.Info("merchant status changed",
		zap.String("merchant", merchant.ID),
		zap.String("status", string(merchant.Status)),
	)
	l.publish(ctx, Event{Type: EventMerchantStatusChanged, OccurredAt: now, Merchant: &merchant})
	return merchant, nil
}
