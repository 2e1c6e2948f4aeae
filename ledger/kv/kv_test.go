package kv_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"ledgerly.dev/ledger/ledger"
	"ledgerly.dev/ledger/ledger/kv"
	"ledgerly.dev/ledger/ledger/testsuite"
	"ledgerly.dev/ledger/utils"
)

func Test_Storage(t *testing.T) {
	db, err := kv.Open("", zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)))
	require.Nil(t, err, "failed to open database")

	storage := kv.New(kv.Config{DB: db})
	defer storage.Close()

	testsuite.Test(t, storage)
}

func Test_Persistence(t *testing.T) {
	assertions := assert.New(t)

	dir := t.TempDir()
	db, err := kv.Open(dir, nil)
	require.Nil(t, err, "failed to open database")

	ctx, cancel := utils.NewContext()
	defer cancel()

	storage := kv.New(kv.Config{DB: db})
	merchant := ledger.Merchant{ID: "m1", Name: "Merchant", Status: ledger.MerchantActive, CreatedAt: testsuite.Base, UpdatedAt: testsuite.Base}
	require.Nil(t, storage.InsertMerchant(ctx, merchant), "failed to insert merchant")
	expiresAt := testsuite.Base.Add(time.Minute)
	tx := ledger.Transaction{
		ID:         "t1",
		MerchantID: merchant.ID,
		Amount:     500,
		Currency:   "USD",
		State:      ledger.StatePending,
		ExpiresAt:  &expiresAt,
		CreatedAt:  testsuite.Base,
		UpdatedAt:  testsuite.Base,
	}
	require.Nil(t, storage.InsertTransaction(ctx, tx), "failed to insert transaction")
	assertions.Nil(storage.Close(), "failed to close database")

	db, err = kv.Open(dir, nil)
	require.Nil(t, err, "failed to reopen database")
	storage = kv.New(kv.Config{DB: db})
	defer storage.Close()

	stored, err := storage.Transaction(ctx, tx.ID)
	assertions.Nil(err, "failed to get transaction after reopen")
	assertions.Equal(tx.MerchantID, stored.MerchantID)

	ids, err := storage.ExpiredCandidates(ctx, expiresAt)
	assertions.Nil(err, "failed to list candidates after reopen")
	assertions.Equal([]string{tx.ID}, ids)
}

func Test_Timestamp(t *testing.T) {
	t.Run("Order", func(t *testing.T) {
		assertions := assert.New(t)

		times := []time.Time{
			time.Date(1815, time.June, 18, 0, 0, 0, 0, time.UTC),
			time.Unix(-1, 999_999_999),
			time.Unix(0, 0),
			time.Unix(0, 1),
			time.Date(2024, time.February, 29, 23, 59, 59, 999_999_000, time.UTC),
			time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			time.Date(3000, time.January, 1, 0, 0, 0, 0, time.UTC),
		}
		for index := 1; index < len(times); index++ {
			previous, current := kv.Timestamp(times[index-1]), kv.Timestamp(times[index])
			assertions.Equal(-1, bytes.Compare(previous, current), "%s < %s", times[index-1], times[index])
		}
	})
	t.Run("Round trip", func(t *testing.T) {
		assertions := assert.New(t)

		for _, at := range []time.Time{
			time.Date(1815, time.June, 18, 11, 30, 0, 5, time.UTC),
			time.Unix(0, 0),
			time.Date(2031, time.March, 14, 9, 26, 53, 589_793_000, time.UTC),
		} {
			assertions.True(at.Equal(kv.ParseTimestamp(kv.Timestamp(at))), "%s", at)
		}
	})
}

func Test_Keys(t *testing.T) {
	assertions := assert.New(t)

	at := time.Date(2031, time.March, 14, 0, 0, 0, 0, time.UTC)
	assertions.Equal([]byte("/merchants/m1"), kv.MerchantKey("m1"))
	assertions.Equal([]byte("/transactions/t1"), kv.TransactionKey("t1"))
	assertions.True(bytes.HasPrefix(kv.MerchantIndexKey("m1", at, "t1"), kv.MerchantPrefix("m1")))
	assertions.False(bytes.HasPrefix(kv.MerchantIndexKey("m10", at, "t1"), kv.MerchantPrefix("m1")))
	assertions.True(bytes.HasSuffix(kv.ExpiryKey(at, "t1"), []byte("t1")))
}
