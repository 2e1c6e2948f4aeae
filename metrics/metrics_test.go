package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ledgerly.dev/ledger/ledger"
	"ledgerly.dev/ledger/metrics"
)

func Test_Publish(t *testing.T) {
	assertions := assert.New(t)

	registry := prometheus.NewRegistry()
	collector, err := metrics.New(registry)
	require.Nil(t, err, "failed to create collector")

	ctx := context.Background()
	for _, eventType := range []ledger.EventType{
		ledger.EventTransactionCreated,
		ledger.EventTransactionCreated,
		ledger.EventTransactionExpired,
	} {
		assertions.Nil(collector.Publish(ctx, ledger.Event{Type: eventType}))
	}

	expected := `
# HELP ledger_events_total Committed ledger changes by event type.
# TYPE ledger_events_total counter
ledger_events_total{type="transaction.created"} 2
ledger_events_total{type="transaction.expired"} 1
# HELP ledger_sweep_expired_total Transactions moved to EXPIRED by the sweeper.
# TYPE ledger_sweep_expired_total counter
ledger_sweep_expired_total 1
`
	err = testutil.GatherAndCompare(registry, strings.NewReader(expected), "ledger_events_total", "ledger_sweep_expired_total")
	assertions.Nil(err, "unexpected metrics")

	_, err = metrics.New(registry)
	assertions.Nil(err, "registering twice must be tolerated")
}

func Test_Middleware(t *testing.T) {
	assertions := assert.New(t)
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	collector, err := metrics.New(registry)
	require.Nil(t, err, "failed to create collector")

	engine := gin.New()
	engine.Use(collector.Middleware())
	engine.GET("/ledger/transactions/:id", func(ctx *gin.Context) {
		ctx.Status(http.StatusNotFound)
	})
	engine.GET("/metrics", gin.WrapH(collector.Handler()))

	for _, path := range []string{"/ledger/transactions/t1", "/ledger/transactions/t2", "/unknown"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(registry, "ledger_http_request_duration_seconds")
	assertions.Nil(err, "failed to gather")
	assertions.Equal(2, count, "one series per route and status")

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assertions.Equal(http.StatusOK, recorder.Code)
	assertions.Contains(recorder.Body.String(), `route="/ledger/transactions/:id"`)
	assertions.Contains(recorder.Body.String(), `route="unmatched"`)
}
