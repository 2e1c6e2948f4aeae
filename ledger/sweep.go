package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"ledgerly.dev/ledger/utils"
)

// Sweep moves every PENDING transaction whose deadline is at or before now to
// EXPIRED. Transactions settled concurrently by an outcome are skipped. The
// count is returned even when some candidates fail, alongside the joined errors.
func (l *Ledger) Sweep(ctx context.Context, now time.Time) (expired int, err error) {
	now = normalizeTime(now)
	ids, err := l.storage.ExpiredCandidates(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired transactions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var (
		count  atomic.Int64
		errsMu sync.Mutex
		errs   []error
		wg     sync.WaitGroup
	)
	jobs := utils.NewJobPool(l.sweepConcurrency)
	for _, id := range ids {
		if ctx.Err() != nil {
			errsMu.Lock()
			errs = append(errs, ctx.Err())
			errsMu.Unlock()
			break
		}
		jobs.Get()
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer jobs.Put()

			tx, applied, err := l.storage.Transition(ctx, Transition{ID: id, To: StateExpired, At: now})
			if err != nil {
				l.logger.Error("failed to expire transaction", zap.String("transaction", id), zap.Error(err))
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("failed to expire transaction %s: %w", id, err))
				errsMu.Unlock()
				return
			}
			if !applied {
				return
			}
			count.Add(1)
			l.publish(ctx, Event{Type: EventTransactionExpired, OccurredAt: now, Transaction: &tx})
		}(id)
	}
	wg.Wait()

	expired = int(count.Load())
	l.logger.Info("sweep finished",
		zap.Int("candidates", len(ids)),
		zap.Int("expired", expired),
		zap.Int("failed", len(errs)),
	)
	return expired, errors.Join(errs...)
}
