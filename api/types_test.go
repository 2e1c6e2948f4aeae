package api_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"ledgerly.dev/ledger/api"
	"ledgerly.dev/ledger/ledger"
)

func Test_Metadata(t *testing.T) {
	type Test struct {
		Body   string
		Expect api.Metadata
	}
	tests := []Test{
		{Body: `{"metadata": {"channel": "pos"}}`, Expect: api.Metadata{"channel": "pos"}},
		{Body: `{"metadata": "seeded: pos"}`, Expect: api.Metadata{api.NoteKey: "seeded: pos"}},
		{Body: `{"metadata": ""}`, Expect: nil},
		{Body: `{"metadata": null}`, Expect: nil},
		{Body: `{}`, Expect: nil},
	}
	for _, test := range tests {
		t.Run(test.Body, func(t *testing.T) {
			assertions := assert.New(t)

			var req api.CreateTransaction
			err := json.Unmarshal([]byte(test.Body), &req)
			assertions.Nil(err, "failed to unmarshal")
			assertions.Equal(test.Expect, req.Metadata)
		})
	}

	t.Run("Invalid", func(t *testing.T) {
		var req api.CreateTransaction
		err := json.Unmarshal([]byte(`{"metadata": {"retries": 3}}`), &req)
		assert.NotNil(t, err)
	})
}

func Test_CreateTransactionToLedger(t *testing.T) {
	t.Run("Succeed", func(t *testing.T) {
		assertions := assert.New(t)

		var req api.CreateTransaction
		err := json.Unmarshal([]byte(`{"id":"t1","merchantId":"m1","amount":500,"currency":"USD","expiresAt":"2025-01-02T16:04:05+01:00"}`), &req)
		assertions.Nil(err, "failed to unmarshal")

		out, err := api.CreateTransactionToLedger(&req)
		assertions.Nil(err, "failed to convert")
		assertions.Equal(int64(500), out.Amount)
		if assertions.NotNil(out.ExpiresAt) {
			assertions.True(time.Date(2025, time.January, 2, 15, 4, 5, 0, time.UTC).Equal(*out.ExpiresAt))
		}
	})
	t.Run("Absent expiry", func(t *testing.T) {
		assertions := assert.New(t)

		amount := int64(0)
		out, err := api.CreateTransactionToLedger(&api.CreateTransaction{Id: "t1", Amount: &amount, ExpiresAt: " "})
		assertions.Nil(err, "failed to convert")
		assertions.Nil(out.ExpiresAt)
	})
	t.Run("Fail", func(t *testing.T) {
		assertions := assert.New(t)

		_, err := api.CreateTransactionToLedger(&api.CreateTransaction{Id: "t1"})
		assertions.ErrorIs(err, ledger.ErrInvalidArgument, "amount is required")

		amount := int64(5)
		_, err = api.CreateTransactionToLedger(&api.CreateTransaction{Id: "t1", Amount: &amount, ExpiresAt: "tomorrow"})
		assertions.ErrorIs(err, ledger.ErrInvalidArgument)
	})
}

func Test_AssertOutcomeToLedger(t *testing.T) {
	assertions := assert.New(t)

	empty := " "
	out, err := api.AssertOutcomeToLedger("t1", &api.AssertOutcome{Status: "SUCCESS", ExternalReference: &empty})
	assertions.Nil(err, "failed to convert")
	assertions.Nil(out.ExternalReference, "blank reference is absent")
	assertions.Nil(out.ReportedAt)

	reference := "ext-1"
	out, err = api.AssertOutcomeToLedger("t1", &api.AssertOutcome{Status: "FAILED", ExternalReference: &reference, ReportedAt: "2025-01-02T15:04:05Z"})
	assertions.Nil(err, "failed to convert")
	assertions.Equal("t1", out.TransactionID)
	assertions.Equal(ledger.StateFailed, out.Status)
	assertions.Equal("ext-1", *out.ExternalReference)
	assertions.NotNil(out.ReportedAt)
}

func Test_CreateMerchantToLedger(t *testing.T) {
	assertions := assert.New(t)

	assertions.Equal(ledger.MerchantActive, api.CreateMerchantToLedger(&api.CreateMerchant{Id: "m1", Name: "Joel"}).Status)
	assertions.Equal(ledger.MerchantStatus("inactive"), api.CreateMerchantToLedger(&api.CreateMerchant{Id: "m1", Name: "Joel", Status: "inactive"}).Status)
}
