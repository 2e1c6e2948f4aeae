package testsuite

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "embed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"ledgerly.dev/ledger/ledger"
	"ledgerly.dev/ledger/random"
	"ledgerly.dev/ledger/utils"
)

var (
	//go:embed tests/insert.yaml
	insertTests []byte
	//go:embed tests/transition.yaml
	transitionTests []byte
)

// Base is the creation time used by the suite. Far from the present so the
// suite can share a storage with other tests.
var Base = time.Date(2031, time.March, 14, 9, 26, 53, 589_000_000, time.UTC)

type fixture struct {
	storage ledger.Storage
}

func (f *fixture) id(prefix string) string {
	return random.ID(random.CryptoRand(), prefix)
}

func (f *fixture) merchant(t *testing.T, ctx context.Context, status ledger.MerchantStatus) (merchant ledger.Merchant) {
	merchant = ledger.Merchant{
		ID:        f.id("m"),
		Name:      "Merchant",
		Status:    status,
		CreatedAt: Base,
		UpdatedAt: Base,
	}
	err := f.storage.InsertMerchant(ctx, merchant)
	require.Nil(t, err, "failed to insert merchant")
	return merchant
}

func (f *fixture) transaction(merchantID string, createdAt time.Time, expiresIn *time.Duration) (tx ledger.Transaction) {
	tx = ledger.Transaction{
		ID:         f.id("t"),
		MerchantID: merchantID,
		Amount:     12_500,
		Currency:   "KES",
		State:      ledger.StatePending,
		Metadata:   ledger.Metadata{"channel": "pos"},
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if expiresIn != nil {
		expiresAt := createdAt.Add(*expiresIn)
		tx.ExpiresAt = &expiresAt
	}
	return tx
}

// Test runs the behaviour every ledger.Storage implementation must provide.
func Test(t *testing.T, storage ledger.Storage) {
	f := &fixture{storage: storage}

	t.Run("Merchants", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		merchant := f.merchant(t, ctx, ledger.MerchantActive)

		stored, err := storage.Merchant(ctx, merchant.ID)
		assertions.Nil(err, "failed to get merchant")
		assertions.Equal(merchant.Name, stored.Name)
		assertions.Equal(ledger.MerchantActive, stored.Status)
		assertions.True(merchant.CreatedAt.Equal(stored.CreatedAt))

		err = storage.InsertMerchant(ctx, merchant)
		assertions.ErrorIs(err, ledger.ErrAlreadyExists)

		_, err = storage.Merchant(ctx, f.id("unknown"))
		assertions.ErrorIs(err, ledger.ErrNotFound)

		updatedAt := Base.Add(time.Hour)
		updated, err := storage.UpdateMerchantStatus(ctx, merchant.ID, ledger.MerchantInactive, updatedAt)
		assertions.Nil(err, "failed to update merchant")
		assertions.Equal(ledger.MerchantInactive, updated.Status)
		assertions.True(updatedAt.Equal(updated.UpdatedAt))

		stored, err = storage.Merchant(ctx, merchant.ID)
		assertions.Nil(err, "failed to get merchant")
		assertions.Equal(ledger.MerchantInactive, stored.Status)

		_, err = storage.UpdateMerchantStatus(ctx, f.id("unknown"), ledger.MerchantActive, updatedAt)
		assertions.ErrorIs(err, ledger.ErrNotFound)
	})
	t.Run("Insert", func(t *testing.T) {
		type Test struct {
			Name           string         `yaml:"name"`
			MerchantStatus string         `yaml:"merchant-status"`
			ExpiresIn      *time.Duration `yaml:"expires-in"`
			Duplicate      bool           `yaml:"duplicate"`
			Expect         string         `yaml:"expect"`
		}
		expectations := map[string]error{
			"":                  nil,
			"not-found":         ledger.ErrNotFound,
			"merchant-inactive": ledger.ErrMerchantInactive,
			"already-exists":    ledger.ErrAlreadyExists,
		}

		var tests []Test
		err := yaml.Unmarshal(insertTests, &tests)
		require.Nil(t, err, "failed to load tests")

		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				assertions := assert.New(t)

				ctx, cancel := utils.NewContext()
				defer cancel()

				merchantID := f.id("missing")
				if test.MerchantStatus != "" {
					merchantID = f.merchant(t, ctx, ledger.MerchantStatus(test.MerchantStatus)).ID
				}
				tx := f.transaction(merchantID, Base, test.ExpiresIn)
				if test.Duplicate {
					err := storage.InsertTransaction(ctx, tx)
					assertions.Nil(err, "failed to insert first transaction")
				}

				err := storage.InsertTransaction(ctx, tx)
				expect := expectations[test.Expect]
				if expect != nil {
					assertions.ErrorIs(err, expect)
				} else {
					assertions.Nil(err, "failed to insert transaction")
				}

				stored, err := storage.Transaction(ctx, tx.ID)
				if expect != nil && !test.Duplicate {
					assertions.ErrorIs(err, ledger.ErrNotFound, "failed insert must persist nothing")
					return
				}
				assertions.Nil(err, "failed to get transaction")
				assertions.Equal(tx.ID, stored.ID)
				assertions.Equal(tx.MerchantID, stored.MerchantID)
				assertions.Equal(tx.Amount, stored.Amount)
				assertions.Equal(tx.Currency, stored.Currency)
				assertions.Equal(ledger.StatePending, stored.State)
				assertions.Equal(tx.Metadata, stored.Metadata)
				assertions.Nil(stored.Outcome)
				assertions.True(tx.CreatedAt.Equal(stored.CreatedAt))
				if tx.ExpiresAt == nil {
					assertions.Nil(stored.ExpiresAt)
				} else if assertions.NotNil(stored.ExpiresAt) {
					assertions.True(tx.ExpiresAt.Equal(*stored.ExpiresAt))
				}
			})
		}
	})
	t.Run("Not found", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		_, err := storage.Transaction(ctx, f.id("unknown"))
		assertions.ErrorIs(err, ledger.ErrNotFound)

		_, _, err = storage.Transition(ctx, ledger.Transition{ID: f.id("unknown"), To: ledger.StateSuccess, At: Base})
		assertions.ErrorIs(err, ledger.ErrNotFound)
	})
	t.Run("Transition", func(t *testing.T) {
		type Step struct {
			To      ledger.State `yaml:"to"`
			Applied bool         `yaml:"applied"`
		}
		type Test struct {
			Name        string         `yaml:"name"`
			ExpiresIn   *time.Duration `yaml:"expires-in"`
			Transitions []Step         `yaml:"transitions"`
			Expect      ledger.State   `yaml:"expect"`
		}

		var tests []Test
		err := yaml.Unmarshal(transitionTests, &tests)
		require.Nil(t, err, "failed to load tests")

		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				assertions := assert.New(t)

				ctx, cancel := utils.NewContext()
				defer cancel()

				merchant := f.merchant(t, ctx, ledger.MerchantActive)
				tx := f.transaction(merchant.ID, Base, test.ExpiresIn)
				err := storage.InsertTransaction(ctx, tx)
				require.Nil(t, err, "failed to insert transaction")

				var first ledger.Transaction
				for index, step := range test.Transitions {
					transition := ledger.Transition{ID: tx.ID, To: step.To, At: Base.Add(time.Duration(index+1) * time.Second)}
					if step.To.Outcome() {
						reference := f.id("ref")
						transition.Outcome = &ledger.Outcome{
							ExternalReference: &reference,
							ReportedAt:        transition.At,
							Metadata:          ledger.Metadata{"step": string(step.To)},
						}
					}

					stored, applied, err := storage.Transition(ctx, transition)
					assertions.Nil(err, "failed to transition")
					assertions.Equal(step.Applied, applied, "step %d", index)
					assertions.Equal(test.Expect, stored.State, "step %d", index)
					if index == 0 {
						first = stored
						continue
					}
					assertions.Equal(first.Reference(), stored.Reference(), "terminal outcome must not change")
					assertions.True(first.UpdatedAt.Equal(stored.UpdatedAt), "terminal record must not change")
				}

				stored, err := storage.Transaction(ctx, tx.ID)
				assertions.Nil(err, "failed to get transaction")
				assertions.Equal(test.Expect, stored.State)
				assertions.Equal(first.Reference(), stored.Reference())
				if test.Expect == ledger.StateExpired {
					assertions.Nil(stored.Outcome)
				} else if assertions.NotNil(stored.Outcome) {
					assertions.True(first.Outcome.ReportedAt.Equal(stored.Outcome.ReportedAt))
					assertions.Equal(first.Outcome.Metadata, stored.Outcome.Metadata)
				}
			})
		}
	})
	t.Run("Transactions", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		m1 := f.merchant(t, ctx, ledger.MerchantActive)
		m2 := f.merchant(t, ctx, ledger.MerchantActive)

		// Inserted out of creation order, with a tie on the last two
		offsets := []time.Duration{3 * time.Second, time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
		var inserted []ledger.Transaction
		for index, offset := range offsets {
			merchant := m1
			if index == 2 {
				merchant = m2
			}
			tx := f.transaction(merchant.ID, Base.Add(offset), nil)
			err := storage.InsertTransaction(ctx, tx)
			require.Nil(t, err, "failed to insert transaction")
			inserted = append(inserted, tx)
		}
		_, _, err := storage.Transition(ctx, ledger.Transition{ID: inserted[0].ID, To: ledger.StateFailed, At: Base.Add(time.Minute)})
		require.Nil(t, err, "failed to transition")

		ids := func(txs []ledger.Transaction) (ids []string) {
			for _, tx := range txs {
				ids = append(ids, tx.ID)
			}
			return ids
		}
		tie := []string{inserted[3].ID, inserted[4].ID}
		if tie[1] < tie[0] {
			tie[0], tie[1] = tie[1], tie[0]
		}

		txs, err := storage.Transactions(ctx, ledger.Filter{MerchantID: m1.ID})
		assertions.Nil(err, "failed to list transactions")
		assertions.Equal([]string{inserted[1].ID, inserted[0].ID, tie[0], tie[1]}, ids(txs))

		txs, err = storage.Transactions(ctx, ledger.Filter{MerchantID: m1.ID, State: ledger.StatePending})
		assertions.Nil(err, "failed to list transactions")
		assertions.Equal([]string{inserted[1].ID, tie[0], tie[1]}, ids(txs))

		txs, err = storage.Transactions(ctx, ledger.Filter{MerchantID: m2.ID})
		assertions.Nil(err, "failed to list transactions")
		assertions.Equal([]string{inserted[2].ID}, ids(txs))

		txs, err = storage.Transactions(ctx, ledger.Filter{MerchantID: f.id("unknown")})
		assertions.Nil(err, "failed to list transactions")
		assertions.NotNil(txs)
		assertions.Empty(txs)

		txs, err = storage.Transactions(ctx, ledger.Filter{})
		assertions.Nil(err, "failed to list transactions")
		all := ids(txs)
		for _, tx := range inserted {
			assertions.Contains(all, tx.ID)
		}
		for index := 1; index < len(txs); index++ {
			previous, current := txs[index-1], txs[index]
			ordered := previous.CreatedAt.Before(current.CreatedAt) ||
				(previous.CreatedAt.Equal(current.CreatedAt) && previous.ID < current.ID)
			assertions.True(ordered, "%s must be listed before %s", previous.ID, current.ID)
		}

		txs, err = storage.Transactions(ctx, ledger.Filter{State: ledger.StateFailed})
		assertions.Nil(err, "failed to list transactions")
		assertions.Contains(ids(txs), inserted[0].ID)
		for _, tx := range txs {
			assertions.Equal(ledger.StateFailed, tx.State)
		}
	})
	t.Run("Expired candidates", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		merchant := f.merchant(t, ctx, ledger.MerchantActive)
		past, exact, future := -time.Hour, time.Duration(0), time.Hour
		expired := f.transaction(merchant.ID, Base, &past)
		deadline := f.transaction(merchant.ID, Base, &exact)
		pending := f.transaction(merchant.ID, Base, &future)
		forever := f.transaction(merchant.ID, Base, nil)
		settled := f.transaction(merchant.ID, Base, &past)
		for _, tx := range []ledger.Transaction{expired, deadline, pending, forever, settled} {
			err := storage.InsertTransaction(ctx, tx)
			require.Nil(t, err, "failed to insert transaction")
		}
		_, applied, err := storage.Transition(ctx, ledger.Transition{ID: settled.ID, To: ledger.StateSuccess, At: Base})
		require.Nil(t, err, "failed to transition")
		require.True(t, applied)

		ids, err := storage.ExpiredCandidates(ctx, Base)
		assertions.Nil(err, "failed to list candidates")
		assertions.Contains(ids, expired.ID)
		assertions.Contains(ids, deadline.ID)
		assertions.NotContains(ids, pending.ID)
		assertions.NotContains(ids, forever.ID)
		assertions.NotContains(ids, settled.ID)

		_, applied, err = storage.Transition(ctx, ledger.Transition{ID: expired.ID, To: ledger.StateExpired, At: Base})
		assertions.Nil(err, "failed to expire")
		assertions.True(applied)

		ids, err = storage.ExpiredCandidates(ctx, Base)
		assertions.Nil(err, "failed to list candidates")
		assertions.NotContains(ids, expired.ID)
		assertions.Contains(ids, deadline.ID)

		ids, err = storage.ExpiredCandidates(ctx, Base.Add(2*time.Hour))
		assertions.Nil(err, "failed to list candidates")
		assertions.Contains(ids, pending.ID)
	})
	t.Run("Concurrent transition", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		merchant := f.merchant(t, ctx, ledger.MerchantActive)
		past := -time.Minute
		tx := f.transaction(merchant.ID, Base, &past)
		err := storage.InsertTransaction(ctx, tx)
		require.Nil(t, err, "failed to insert transaction")

		states := []ledger.State{ledger.StateSuccess, ledger.StateFailed, ledger.StateExpired}
		var (
			winners atomic.Int64
			winner  atomic.Value
			wg      sync.WaitGroup
		)
		for index := range 24 {
			wg.Add(1)
			go func(to ledger.State) {
				defer wg.Done()

				stored, applied, err := storage.Transition(ctx, ledger.Transition{ID: tx.ID, To: to, At: Base})
				assertions.Nil(err, "failed to transition")
				if applied {
					winners.Add(1)
					winner.Store(stored.State)
				}
			}(states[index%len(states)])
		}
		wg.Wait()

		assertions.Equal(int64(1), winners.Load())
		stored, err := storage.Transaction(ctx, tx.ID)
		assertions.Nil(err, "failed to get transaction")
		assertions.Equal(winner.Load(), stored.State)
	})
	t.Run("Concurrent insert", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		merchant := f.merchant(t, ctx, ledger.MerchantActive)
		tx := f.transaction(merchant.ID, Base, nil)

		var (
			inserted, duplicated atomic.Int64
			wg                   sync.WaitGroup
		)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				err := storage.InsertTransaction(ctx, tx)
				switch {
				case err == nil:
					inserted.Add(1)
				default:
					assertions.ErrorIs(err, ledger.ErrAlreadyExists)
					duplicated.Add(1)
				}
			}()
		}
		wg.Wait()

		assertions.Equal(int64(1), inserted.Load())
		assertions.Equal(int64(15), duplicated.Load())
	})
}
