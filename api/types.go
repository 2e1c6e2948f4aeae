package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ledgerly.dev/ledger/ledger"
)

// NoteKey holds metadata sent as a plain string
const NoteKey = "note"

// Metadata accepts either a JSON object of strings or a plain string
type Metadata map[string]string

var _ json.Unmarshaler = (*Metadata)(nil)

func (m *Metadata) UnmarshalJSON(b []byte) (err error) {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*m = nil
		return nil
	case len(b) > 0 && b[0] == '"':
		var note string
		err = json.Unmarshal(b, &note)
		if err != nil {
			return err
		}
		if strings.TrimSpace(note) == "" {
			*m = nil
			return nil
		}
		*m = Metadata{NoteKey: note}
		return nil
	default:
		var values map[string]string
		err = json.Unmarshal(b, &values)
		if err != nil {
			return fmt.Errorf("metadata must be a string or an object of strings: %w", err)
		}
		*m = values
		return nil
	}
}

type (
	Merchant struct {
		Id        string    `json:"id"`
		Name      string    `json:"name"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	CreateMerchant struct {
		Id   string `json:"id"`
		Name string `json:"name"`
		// Defaults to ACTIVE
		Status string `json:"status,omitzero"`
	}
	UpdateMerchant struct {
		Status string `json:"status"`
	}
	Outcome struct {
		ExternalReference *string   `json:"externalReference,omitzero"`
		ReportedAt        time.Time `json:"reportedAt"`
		Metadata          Metadata  `json:"metadata,omitzero"`
	}
	Transaction struct {
		Id         string `json:"id"`
		MerchantId string `json:"merchantId"`
		// Minor currency units
		Amount    int64      `json:"amount"`
		Currency  string     `json:"currency"`
		State     string     `json:"state"`
		CreatedAt time.Time  `json:"createdAt"`
		UpdatedAt time.Time  `json:"updatedAt"`
		ExpiresAt *time.Time `json:"expiresAt,omitzero"`
		Outcome   *Outcome   `json:"outcome,omitzero"`
		Metadata  Metadata   `json:"metadata,omitzero"`
	}
	CreateTransaction struct {
		Id         string `json:"id"`
		MerchantId string `json:"merchantId"`
		// Required, minor currency units
		Amount   *int64 `json:"amount"`
		Currency string `json:"currency"`
		// RFC 3339. Empty never expires
		ExpiresAt string   `json:"expiresAt,omitzero"`
		Metadata  Metadata `json:"metadata,omitzero"`
	}
	AssertOutcome struct {
		Status            string  `json:"status"`
		ExternalReference *string `json:"externalReference,omitzero"`
		// RFC 3339. Empty defaults to the time of the request
		ReportedAt string   `json:"reportedAt,omitzero"`
		Metadata   Metadata `json:"metadata,omitzero"`
	}
	Expired struct {
		Expired int `json:"expired"`
		// Set when some candidates could not be expired
		Error string `json:"error,omitzero"`
	}
	Error struct {
		Error string `json:"error"`
	}
)

// ParseTime parses an optional RFC 3339 timestamp. Empty means absent.
func ParseTime(field, s string) (t *time.Time, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", ledger.ErrInvalidArgument, field)
	}
	return &parsed, nil
}

func MerchantFromLedger(src *ledger.Merchant) (merchant Merchant) {
	return Merchant{
		Id:        src.ID,
		Name:      src.Name,
		Status:    string(src.Status),
		CreatedAt: src.CreatedAt,
		UpdatedAt: src.UpdatedAt,
	}
}

func CreateMerchantToLedger(src *CreateMerchant) (out ledger.RegisterMerchant) {
	out = ledger.RegisterMerchant{
		ID:     src.Id,
		Name:   src.Name,
		Status: ledger.MerchantStatus(src.Status),
	}
	if strings.TrimSpace(src.Status) == "" {
		out.Status = ledger.MerchantActive
	}
	return out
}

func TransactionFromLedger(src *ledger.Transaction) (tx Transaction) {
	tx = Transaction{
		Id:         src.ID,
		MerchantId: src.MerchantID,
		Amount:     src.Amount,
		Currency:   src.Currency,
		State:      string(src.State),
		CreatedAt:  src.CreatedAt,
		UpdatedAt:  src.UpdatedAt,
		ExpiresAt:  src.ExpiresAt,
		Metadata:   Metadata(src.Metadata),
	}
	if src.Outcome != nil {
		tx.Outcome = &Outcome{
			ExternalReference: src.Outcome.ExternalReference,
			ReportedAt:        src.Outcome.ReportedAt,
			Metadata:          Metadata(src.Outcome.Metadata),
		}
	}
	return tx
}

func TransactionsFromLedger(src []ledger.Transaction) (txs []Transaction) {
	txs = make([]Transaction, 0, len(src))
	for index := range src {
		txs = append(txs, TransactionFromLedger(&src[index]))
	}
	return txs
}

func CreateTransactionToLedger(src *CreateTransaction) (out ledger.CreateTransaction, err error) {
	if src.Amount == nil {
		return out, fmt.Errorf("%w: amount is required", ledger.ErrInvalidArgument)
	}
	out = ledger.CreateTransaction{
		ID:         src.Id,
		MerchantID: src.MerchantId,
		Amount:     *src.Amount,
		Currency:   src.Currency,
		Metadata:   ledger.Metadata(src.Metadata),
	}
	out.ExpiresAt, err = ParseTime("expiresAt", src.ExpiresAt)
	if err != nil {
		return out, err
	}
	return out, nil
}

func AssertOutcomeToLedger(id string, src *AssertOutcome) (out ledger.AssertOutcome, err error) {
	out = ledger.AssertOutcome{
		TransactionID: id,
		Status:        ledger.State(src.Status),
		Metadata:      ledger.Metadata(src.Metadata),
	}
	if src.ExternalReference != nil && strings.TrimSpace(*src.ExternalReference) != "" {
		reference := strings.TrimSpace(*src.ExternalReference)
		out.ExternalReference = &reference
	}
	out.ReportedAt, err = ParseTime("reportedAt", src.ReportedAt)
	if err != nil {
		return out, err
	}
	return out, nil
}
