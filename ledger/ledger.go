package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"ledgerly.dev/ledger/utils"
)

const DefaultSweepConcurrency = 16

type Config struct {
	Storage Storage
	// Receives an event after every committed mutation. Defaults to NopPublisher
	Publisher Publisher
	Logger    *zap.Logger
	// Source of every timestamp the ledger assigns. Defaults to time.Now
	Clock func() time.Time
	// Number of expirations applied in parallel by Sweep
	SweepConcurrency int
}

type Ledger struct {
	storage          Storage
	publisher        Publisher
	logger           *zap.Logger
	clock            func() time.Time
	sweepConcurrency int
}

func New(config Config) (l *Ledger) {
	l = &Ledger{
		storage:          config.Storage,
		publisher:        config.Publisher,
		logger:           config.Logger,
		clock:            config.Clock,
		sweepConcurrency: utils.OrDefault(config.SweepConcurrency, DefaultSweepConcurrency),
	}
	if l.publisher == nil {
		l.publisher = NopPublisher{}
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	return l
}

// Now returns the ledger clock in UTC, at the microsecond precision every backend can store
func (l *Ledger) Now() time.Time {
	return normalizeTime(l.clock())
}

func (l *Ledger) publish(ctx context.Context, event Event) {
	err := l.publisher.Publish(ctx, event)
	if err != nil {
		l.logger.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func validateID(field, id string) (err error) {
	if id == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, field)
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: %s contains control characters", ErrInvalidArgument, field)
	}
	return nil
}
