package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ledgerly.dev/ledger/api"
	"ledgerly.dev/ledger/cmd/ledgerd/internal/router"
	"ledgerly.dev/ledger/ledger"
	"ledgerly.dev/ledger/ledger/kv"
	"ledgerly.dev/ledger/metrics"
)

type server struct {
	t      *testing.T
	engine *gin.Engine
	now    time.Time
}

func newServer(t *testing.T) (s *server) {
	gin.SetMode(gin.TestMode)

	db, err := kv.Open("", nil)
	require.Nil(t, err, "failed to open database")
	storage := kv.New(kv.Config{DB: db})
	t.Cleanup(func() { storage.Close() })

	collector, err := metrics.New(prometheus.NewRegistry())
	require.Nil(t, err, "failed to create collector")

	s = &server{t: t, now: time.Date(2025, time.January, 2, 15, 4, 5, 0, time.UTC)}
	l := ledger.New(ledger.Config{
		Storage:   storage,
		Publisher: collector,
		Clock:     func() time.Time { return s.now },
	})
	s.engine = router.NewEngine(router.EngineConfig{Metrics: collector, CorsOrigins: []string{"http://localhost:5173"}})
	r := router.Router{Ledger: l, Base: s.engine, Metrics: collector}
	r.Register()
	return s
}

func (s *server) do(method, path, body string) (recorder *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	recorder = httptest.NewRecorder()
	s.engine.ServeHTTP(recorder, req)
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) (v T) {
	err := json.Unmarshal(recorder.Body.Bytes(), &v)
	require.Nil(t, err, "failed to decode %s", recorder.Body.String())
	return v
}

func Test_Merchants(t *testing.T) {
	assertions := assert.New(t)
	s := newServer(t)

	res := s.do(http.MethodPost, "/ledger/merchants", `{"id":"m1","name":"Joel"}`)
	assertions.Equal(http.StatusCreated, res.Code, res.Body.String())
	merchant := decode[api.Merchant](t, res)
	assertions.Equal("ACTIVE", merchant.Status)

	res = s.do(http.MethodPost, "/ledger/merchants", `{"id":"m1","name":"Joel","status":"ACTIVE"}`)
	assertions.Equal(http.StatusConflict, res.Code)
	assertions.Contains(decode[api.Error](t, res).Error, "already exists")

	res = s.do(http.MethodPost, "/ledger/merchants", `{"id":"m2","name":"Joel","status":"SUSPENDED"}`)
	assertions.Equal(http.StatusBadRequest, res.Code)

	res = s.do(http.MethodPatch, "/ledger/merchants/m1", `{"status":"INACTIVE"}`)
	assertions.Equal(http.StatusOK, res.Code)
	assertions.Equal("INACTIVE", decode[api.Merchant](t, res).Status)

	res = s.do(http.MethodGet, "/ledger/merchants/m1", "")
	assertions.Equal(http.StatusOK, res.Code)
	assertions.Equal("INACTIVE", decode[api.Merchant](t, res).Status)

	res = s.do(http.MethodGet, "/ledger/merchants/missing", "")
	assertions.Equal(http.StatusNotFound, res.Code)

	res = s.do(http.MethodPost, "/ledger/transactions", `{"id":"t1","merchantId":"m1","amount":500,"currency":"USD"}`)
	assertions.Equal(http.StatusUnprocessableEntity, res.Code)
	res = s.do(http.MethodGet, "/ledger/transactions/t1", "")
	assertions.Equal(http.StatusNotFound, res.Code, "rejected create must persist nothing")
}

func Test_Transactions(t *testing.T) {
	assertions := assert.New(t)
	s := newServer(t)

	res := s.do(http.MethodPost, "/ledger/merchants", `{"id":"m1","name":"Joel","status":"ACTIVE"}`)
	require.Equal(t, http.StatusCreated, res.Code)

	res = s.do(http.MethodPost, "/ledger/transactions", `{"id":"t1","merchantId":"m1","amount":500,"currency":"usd","metadata":"from the form"}`)
	assertions.Equal(http.StatusCreated, res.Code, res.Body.String())
	tx := decode[api.Transaction](t, res)
	assertions.Equal("PENDING", tx.State)
	assertions.Equal("USD", tx.Currency)
	assertions.Equal(api.Metadata{api.NoteKey: "from the form"}, tx.Metadata)
	assertions.Nil(tx.ExpiresAt)

	s.now = s.now.Add(time.Second)
	res = s.do(http.MethodPost, "/ledger/transactions", `{"id":"t2","merchantId":"m1","amount":800,"currency":"USD","expiresAt":"2025-01-02T14:04:05Z","metadata":{"channel":"web"}}`)
	assertions.Equal(http.StatusCreated, res.Code, res.Body.String())

	for body, status := range map[string]int{
		`{"id":"t3","merchantId":"m1","amount":-1,"currency":"USD"}`:                       http.StatusBadRequest,
		`{"id":"t3","merchantId":"m1","currency":"USD"}`:                                   http.StatusBadRequest,
		`{"id":"t3","merchantId":"m1","amount":1,"currency":"USD","expiresAt":"tomorrow"}`: http.StatusBadRequest,
		`{"id":"t3","merchantId":"m1","amount":1.5,"currency":"USD"}`:                      http.StatusBadRequest,
		`{"id":"t3","merchantId":"missing","amount":1,"currency":"USD"}`:                   http.StatusNotFound,
		`{"id":"t1","merchantId":"m1","amount":1,"currency":"USD"}`:                        http.StatusConflict,
		`{"id":`: http.StatusBadRequest,
	} {
		res = s.do(http.MethodPost, "/ledger/transactions", body)
		assertions.Equal(status, res.Code, body)
		assertions.NotEmpty(decode[api.Error](t, res).Error, body)
	}

	res = s.do(http.MethodGet, "/ledger/transactions?merchant_id=m1&state=PENDING", "")
	assertions.Equal(http.StatusOK, res.Code)
	txs := decode[[]api.Transaction](t, res)
	if assertions.Len(txs, 2) {
		assertions.Equal("t1", txs[0].Id)
		assertions.Equal("t2", txs[1].Id)
	}

	res = s.do(http.MethodGet, "/ledger/transactions?merchant_id=nobody", "")
	assertions.Equal(http.StatusOK, res.Code)
	assertions.Equal("[]", strings.TrimSpace(res.Body.String()))

	res = s.do(http.MethodGet, "/ledger/transactions?state=SETTLED", "")
	assertions.Equal(http.StatusBadRequest, res.Code)
}

func Test_Outcome(t *testing.T) {
	assertions := assert.New(t)
	s := newServer(t)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/ledger/merchants", `{"id":"m1","name":"Joel"}`).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/ledger/transactions", `{"id":"t1","merchantId":"m1","amount":500,"currency":"USD"}`).Code)

	body := `{"status":"SUCCESS","externalReference":"ext-1","reportedAt":"2025-01-02T15:00:00Z","metadata":"settled"}`
	res := s.do(http.MethodPost, "/ledger/transactions/t1/outcome", body)
	assertions.Equal(http.StatusOK, res.Code, res.Body.String())
	first := decode[api.Transaction](t, res)
	assertions.Equal("SUCCESS", first.State)
	if assertions.NotNil(first.Outcome) {
		assertions.Equal("ext-1", *first.Outcome.ExternalReference)
		assertions.Equal(api.Metadata{api.NoteKey: "settled"}, first.Outcome.Metadata)
	}

	res = s.do(http.MethodPost, "/ledger/transactions/t1/outcome", body)
	assertions.Equal(http.StatusOK, res.Code, "replay")
	assertions.Equal(first, decode[api.Transaction](t, res))

	res = s.do(http.MethodPost, "/ledger/transactions/t1/outcome", `{"status":"FAILED"}`)
	assertions.Equal(http.StatusConflict, res.Code)

	res = s.do(http.MethodPost, "/ledger/transactions/t1/outcome", `{"status":"EXPIRED"}`)
	assertions.Equal(http.StatusBadRequest, res.Code)

	res = s.do(http.MethodPost, "/ledger/transactions/missing/outcome", `{"status":"SUCCESS"}`)
	assertions.Equal(http.StatusNotFound, res.Code)

	res = s.do(http.MethodGet, "/ledger/transactions/t1", "")
	assertions.Equal(http.StatusOK, res.Code)
	assertions.Equal("SUCCESS", decode[api.Transaction](t, res).State)
}

func Test_Expire(t *testing.T) {
	assertions := assert.New(t)
	s := newServer(t)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/ledger/merchants", `{"id":"m1","name":"Joel"}`).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/ledger/transactions", `{"id":"t2","merchantId":"m1","amount":500,"currency":"USD","expiresAt":"2025-01-02T14:04:05Z"}`).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/ledger/transactions", `{"id":"t3","merchantId":"m1","amount":500,"currency":"USD","expiresAt":""}`).Code)

	res := s.do(http.MethodPost, "/ledger/transactions/expire", "")
	assertions.Equal(http.StatusOK, res.Code)
	assertions.Equal(api.Expired{Expired: 1}, decode[api.Expired](t, res))

	res = s.do(http.MethodPost, "/ledger/transactions/expire", "")
	assertions.Equal(api.Expired{Expired: 0}, decode[api.Expired](t, res))

	res = s.do(http.MethodGet, "/ledger/transactions/t2", "")
	assertions.Equal("EXPIRED", decode[api.Transaction](t, res).State)
	res = s.do(http.MethodGet, "/ledger/transactions/t3", "")
	assertions.Equal("PENDING", decode[api.Transaction](t, res).State)

	res = s.do(http.MethodGet, "/metrics", "")
	assertions.Equal(http.StatusOK, res.Code)
	assertions.Contains(res.Body.String(), "ledger_sweep_expired_total 1")
}

func Test_Middleware(t *testing.T) {
	assertions := assert.New(t)
	s := newServer(t)

	res := s.do(http.MethodGet, "/healthz", "")
	assertions.Equal(http.StatusOK, res.Code)
	assertions.NotEmpty(res.Header().Get(router.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(router.RequestIDHeader, "req-1")
	recorder := httptest.NewRecorder()
	s.engine.ServeHTTP(recorder, req)
	assertions.Equal("req-1", recorder.Header().Get(router.RequestIDHeader))

	req = httptest.NewRequest(http.MethodOptions, "/ledger/transactions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder = httptest.NewRecorder()
	s.engine.ServeHTTP(recorder, req)
	assertions.Equal(http.StatusNoContent, recorder.Code)
	assertions.Equal("http://localhost:5173", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func Test_StatusFor(t *testing.T) {
	assertions := assert.New(t)

	assertions.Equal(http.StatusBadRequest, router.StatusFor(ledger.ErrInvalidArgument))
	assertions.Equal(http.StatusNotFound, router.StatusFor(ledger.ErrNotFound))
	assertions.Equal(http.StatusConflict, router.StatusFor(ledger.ErrAlreadyExists))
	assertions.Equal(http.StatusConflict, router.StatusFor(ledger.ErrConflictingOutcome))
	assertions.Equal(http.StatusUnprocessableEntity, router.StatusFor(ledger.ErrMerchantInactive))
	assertions.Equal(http.StatusInternalServerError, router.StatusFor(assert.AnError))
}
