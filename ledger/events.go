package ledger

import (
	"context"
	"time"
)

type EventType string

const (
	EventMerchantRegistered    EventType = "merchant.registered"
	EventMerchantStatusChanged EventType = "merchant.status_changed"
	EventTransactionCreated    EventType = "transaction.created"
	EventTransactionSucceeded  EventType = "transaction.succeeded"
	EventTransactionFailed     EventType = "transaction.failed"
	EventTransactionExpired    EventType = "transaction.expired"
)

// Event describes a committed change. Exactly one of Merchant and Transaction is set.
type Event struct {
	Type        EventType
	OccurredAt  time.Time
	Merchant    *Merchant
	Transaction *Transaction
}

// Publisher receives events after the change they describe is durable.
// Publish errors never undo the change.
type Publisher interface {
	Publish(ctx context.Context, event Event) (err error)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func transitionEvent(state State) EventType {
	switch state {
	case StateSuccess:
		return EventTransactionSucceeded
	case StateFailed:
		return EventTransactionFailed
	default:
		return EventTransactionExpired
	}
}
