package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"ledgerly.dev/ledger/api"
	"ledgerly.dev/ledger/cmd/ledgerctl/internal/client"
)

func Test_TransactionList(t *testing.T) {
	assertions := assert.New(t)
	gin.SetMode(gin.TestMode)

	var query string
	engine := gin.New()
	engine.GET(client.TransactionsPath, func(ctx *gin.Context) {
		query = ctx.Request.URL.RawQuery
		reference := "MPESA-1"
		ctx.JSON(http.StatusOK, []api.Transaction{
			{Id: "t201", MerchantId: "1", Amount: 12550, Currency: "KES", State: "SUCCESS", Outcome: &api.Outcome{ExternalReference: &reference}},
			{Id: "t202", MerchantId: "1", Amount: 300, Currency: "JPY", State: "PENDING"},
		})
	})
	server := httptest.NewServer(engine)
	defer server.Close()

	var out bytes.Buffer
	app.Writer = &out
	err := app.Run(context.TODO(), []string{"ledgerctl", "--url", server.URL, "tx", "list", "--merchant", "1"})
	if !assertions.Nil(err, "failed to run") {
		return
	}
	assertions.Equal("merchant_id=1", query)
	assertions.Contains(out.String(), "125.50 KES")
	assertions.Contains(out.String(), "300 JPY")
	assertions.Contains(out.String(), "MPESA-1")
}
