package events

import (
	"context"
	"errors"

	"ledgerly.dev/ledger/ledger"
)

// Multi delivers every event to all of its publishers, even when some fail
type Multi []ledger.Publisher

func (m Multi) Publish(ctx context.Context, event ledger.Event) (err error) {
	var errs []error
	for _, publisher := range m {
		err = publisher.Publish(ctx, event)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
