package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultInterval = time.Minute

// Sweeper is the part of the ledger the worker drives
type Sweeper interface {
	Now() time.Time
	Sweep(ctx context.Context, now time.Time) (expired int, err error)
}

type Config struct {
	Ledger   Sweeper
	Interval time.Duration
	Logger   *zap.Logger
}

// SweepWorker expires overdue transactions on a ticker
type SweepWorker struct {
	ledger   Sweeper
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func NewSweepWorker(config Config) (w *SweepWorker) {
	w = &SweepWorker{
		ledger:   config.Ledger,
		interval: config.Interval,
		logger:   config.Logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start blocks until Stop is called or ctx is done
func (w *SweepWorker) Start(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("starting sweep worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.stop:
			w.logger.Info("stopping sweep worker")
			return
		case <-ctx.Done():
			w.logger.Info("context cancelled, stopping sweep worker")
			return
		}
	}
}

func (w *SweepWorker) RunOnce(ctx context.Context) (expired int) {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	expired, err := w.ledger.Sweep(ctx, w.ledger.Now())
	if err != nil {
		w.logger.Error("sweep failed", zap.Int("expired", expired), zap.Error(err))
		return expired
	}
	if expired > 0 {
		w.logger.Info("expired transactions", zap.Int("expired", expired))
	}
	return expired
}

// Stop ends Start and waits for the running sweep, if any, to finish
func (w *SweepWorker) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}
