package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type AssertOutcome struct {
	TransactionID string
	// SUCCESS or FAILED
	Status            State
	ExternalReference *string
	// Defaults to the ledger clock
	ReportedAt *time.Time
	Metadata   Metadata
}

// AssertOutcome records the processor reported result of a PENDING transaction.
// Reports against a terminal transaction never write: matching ones replay the
// stored record, anything else fails with ErrConflictingOutcome.
func (l *Ledger) AssertOutcome(ctx context.Context, req AssertOutcome) (tx Transaction, err error) {
	id := strings.TrimSpace(req.TransactionID)
	err = validateID("transaction id", id)
	if err != nil {
		return Transaction{}, err
	}
	status, err := ParseState(string(req.Status))
	if err != nil {
		return Transaction{}, err
	}
	if !status.Outcome() {
		return Transaction{}, fmt.Errorf("%w: outcome status must be %s or %s", ErrInvalidArgument, StateSuccess, StateFailed)
	}
	req.Status = status

	tx, err = l.storage.Transaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if tx.State.Terminal() {
		return replay(tx, req)
	}

	now := l.Now()
	outcome := &Outcome{
		ExternalReference: req.ExternalReference,
		ReportedAt:        now,
		Metadata:          req.Metadata.Clone(),
	}
	if req.ReportedAt != nil {
		outcome.ReportedAt = normalizeTime(*req.ReportedAt)
	}
	tx, applied, err := l.storage.Transition(ctx, Transition{ID: id, To: status, Outcome: outcome, At: now})
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to apply outcome: %w", err)
	}
	if !applied {
		return replay(tx, req)
	}

	l.logger.Info("applied outcome",
		zap.String("transaction", tx.ID),
		zap.String("state", string(tx.State)),
		zap.String("reference", tx.Reference()),
	)
	l.publish(ctx, Event{Type: transitionEvent(tx.State), OccurredAt: now, Transaction: &tx})
	return tx, nil
}

// replay checks a report against an already terminal record
func replay(stored Transaction, req AssertOutcome) (tx Transaction, err error) {
	if stored.State != req.Status {
		return Transaction{}, fmt.Errorf("%w: transaction %s is already %s", ErrConflictingOutcome, stored.ID, stored.State)
	}
	reference := stored.Reference()
	if req.ExternalReference != nil && reference != "" && *req.ExternalReference != reference {
		return Transaction{}, fmt.Errorf("%w: transaction %s has external reference %q", ErrConflictingOutcome, stored.ID, reference)
	}
	return stored, nil
}
