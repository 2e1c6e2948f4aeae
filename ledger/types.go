package ledger

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

type State string

const (
	StatePending State = "PENDING"
	StateSuccess State = "SUCCESS"
	StateFailed  State = "FAILED"
	StateExpired State = "EXPIRED"
)

// ParseState accepts the state names case-insensitively
func ParseState(s string) (state State, err error) {
	state = State(strings.ToUpper(strings.TrimSpace(s)))
	switch state {
	case StatePending, StateSuccess, StateFailed, StateExpired:
		return state, nil
	default:
		return "", fmt.Errorf("%w: unknown state %q", ErrInvalidArgument, s)
	}
}

// Terminal reports whether no further transition is allowed from s
func (s State) Terminal() bool {
	return s != StatePending
}

// Outcome reports whether s can be asserted by an outcome report
func (s State) Outcome() bool {
	return s == StateSuccess || s == StateFailed
}

type MerchantStatus string

const (
	MerchantActive   MerchantStatus = "ACTIVE"
	MerchantInactive MerchantStatus = "INACTIVE"
)

func ParseMerchantStatus(s string) (status MerchantStatus, err error) {
	status = MerchantStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case MerchantActive, MerchantInactive:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown merchant status %q", ErrInvalidArgument, s)
	}
}

// Metadata holds caller supplied annotations. The ledger never interprets it.
type Metadata map[string]string

func (m Metadata) Clone() Metadata {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}

type (
	Merchant struct {
		// Caller assigned identifier
		ID string `json:"id"`
		// Display name
		Name string `json:"name"`
		// Only ACTIVE merchants accept new transactions
		Status    MerchantStatus `json:"status"`
		CreatedAt time.Time      `json:"createdAt"`
		UpdatedAt time.Time      `json:"updatedAt"`
	}
	Outcome struct {
		// Reference assigned by the processor reporting the outcome
		ExternalReference *string `json:"externalReference,omitempty"`
		// When the processor says the outcome happened
		ReportedAt time.Time `json:"reportedAt"`
		Metadata   Metadata  `json:"metadata,omitempty"`
	}
	Transaction struct {
		// Caller assigned identifier
		ID         string `json:"id"`
		MerchantID string `json:"merchantId"`
		// Amount in minor currency units
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		State    State  `json:"state"`
		// Deadline after which a PENDING transaction is swept. Nil never expires.
		ExpiresAt *time.Time `json:"expiresAt,omitempty"`
		// Set once, on the transition to SUCCESS or FAILED
		Outcome   *Outcome  `json:"outcome,omitempty"`
		Metadata  Metadata  `json:"metadata,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
)

// Reference returns the stored external reference or "" when there is none
func (t *Transaction) Reference() string {
	if t.Outcome == nil || t.Outcome.ExternalReference == nil {
		return ""
	}
	return *t.Outcome.ExternalReference
}

// Expired reports whether t is PENDING with a deadline at or before now
func (t *Transaction) Expired(now time.Time) bool {
	return t.State == StatePending && t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}
