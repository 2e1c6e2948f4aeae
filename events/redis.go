package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"ledgerly.dev/ledger/ledger"
)

const DefaultChannel = "transaction_events"

type (
	// Message is the JSON document published for every ledger event
	Message struct {
		EventID     string              `json:"eventId"`
		Type        ledger.EventType    `json:"type"`
		OccurredAt  time.Time           `json:"occurredAt"`
		Merchant    *ledger.Merchant    `json:"merchant,omitempty"`
		Transaction *ledger.Transaction `json:"transaction,omitempty"`
	}
	Config struct {
		Client *redis.Client
		// Pub/sub channel. Defaults to DefaultChannel
		Channel string
	}
	Redis struct {
		client  *redis.Client
		channel string
	}
)

var _ ledger.Publisher = (*Redis)(nil)

func New(config Config) (r *Redis) {
	r = &Redis{client: config.Client, channel: config.Channel}
	if r.channel == "" {
		r.channel = DefaultChannel
	}
	return r
}

func NewMessage(event ledger.Event) (msg Message) {
	return Message{
		EventID:     ulid.MustNew(ulid.Timestamp(event.OccurredAt), ulid.DefaultEntropy()).String(),
		Type:        event.Type,
		OccurredAt:  event.OccurredAt,
		Merchant:    event.Merchant,
		Transaction: event.Transaction,
	}
}

func (r *Redis) Publish(ctx context.Context, event ledger.Event) (err error) {
	contents, err := json.Marshal(NewMessage(event))
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	err = r.client.Publish(ctx, r.channel, contents).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.channel, err)
	}
	return nil
}
