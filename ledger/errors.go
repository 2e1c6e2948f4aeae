package ledger

import "errors"

// Every error returned by the ledger and its storage backends wraps one of
// these when the caller can act on it.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrMerchantInactive   = errors.New("merchant inactive")
	ErrConflictingOutcome = errors.New("conflicting outcome")
)
