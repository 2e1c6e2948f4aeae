package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"ledgerly.dev/ledger/api"
	"ledgerly.dev/ledger/ledger"
	"ledgerly.dev/ledger/metrics"
)

// Manages the HTTP surface of the ledger
type Router struct {
	Ledger *ledger.Ledger
	// Base Gin router to register the routes in
	Base   gin.IRouter
	Logger *zap.Logger
	// Serves MetricsPath when set
	Metrics *metrics.Collector
}

const (
	IdParam         = "id"
	MerchantIdQuery = "merchant_id"
	StateQuery      = "state"

	LedgerPath       = "/ledger"
	MerchantsPath    = "/merchants"
	MerchantPath     = MerchantsPath + "/:" + IdParam
	TransactionsPath = "/transactions"
	TransactionPath  = TransactionsPath + "/:" + IdParam
	OutcomePath      = TransactionPath + "/outcome"
	ExpirePath       = TransactionsPath + "/expire"
	HealthPath       = "/healthz"
	MetricsPath      = "/metrics"
)

func (r *Router) createMerchant(ctx *gin.Context) {
	var req api.CreateMerchant
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		r.malformed(ctx, err)
		return
	}

	merchant, err := r.Ledger.RegisterMerchant(ctx.Request.Context(), api.CreateMerchantToLedger(&req))
	if err != nil {
		r.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, api.MerchantFromLedger(&merchant))
}

func (r *Router) getMerchant(ctx *gin.Context) {
	merchant, err := r.Ledger.Merchant(ctx.Request.Context(), ctx.Param(IdParam))
	if err != nil {
		r.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, api.MerchantFromLedger(&merchant))
}

func (r *Router) updateMerchant(ctx *gin.Context) {
	var req api.UpdateMerchant
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		r.malformed(ctx, err)
		return
	}

	merchant, err := r.Ledger.SetMerchantStatus(ctx.Request.Context(), ctx.Param(IdParam), ledger.MerchantStatus(req.Status))
	if err != nil {
		r.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, api.MerchantFromLedger(&merchant))
}

func (r *Router) createTransaction(ctx *gin.Context) {
	var req api.CreateTransaction
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		r.malformed(ctx, err)
		return
	}

	create, err := api.CreateTransactionToLedger(&req)
	if err != nil {
		r.fail(ctx, err)
		return
	}
	tx, err := r.Ledger.CreateTransaction(ctx.Request.Context(), create)
	if err != nil {
		r.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, api.TransactionFromLedger(&tx))
}

func (r *Router) listTransactions(ctx *gin.Context) {
	filter := ledger.Filter{
		MerchantID: ctx.Query(MerchantIdQuery),
		State:      ledger.State(ctx.Query(StateQuery)),
	}
	txs, err := r.Ledger.Transactions(ctx.Request.Context(), filter)
	if err != nil {
		r.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, api.TransactionsFromLedger(txs))
}

func (r *Router) getTransaction(ctx *gin.Context) {
	tx, err := r.Ledger.Transaction(ctx.Request.Context(), ctx.Param(IdParam))
	if err != nil {
		r.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, api.TransactionFromLedger(&tx))
}

func (r *Router) assertOutcome(ctx *gin.Context) {
	var req api.AssertOutcome
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		r.malformed(ctx, err)
		return
	}

	outcome, err := api.AssertOutcomeToLedger(ctx.Param(IdParam), &req)
	if err != nil {
		r.fail(ctx, err)
		return
	}
	tx, err := r.Ledger.AssertOutcome(ctx.Request.Context(), outcome)
	if err != nil {
		r.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, api.TransactionFromLedger(&tx))
}

func (r *Router) expire(ctx *gin.Context) {
	expired, err := r.Ledger.Sweep(ctx.Request.Context(), r.Ledger.Now())
	if err != nil {
		// Some candidates failed; the ones that did expire are still reported
		r.logger().Error("sweep failed", zap.Int("expired", expired), zap.Error(err))
		ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, api.Expired{Expired: expired, Error: InternalError})
		return
	}
	ctx.JSON(http.StatusOK, api.Expired{Expired: expired})
}

func (r *Router) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Register routes in the Gin router
func (r *Router) Register() {
	r.Base.GET(HealthPath, r.health)
	if r.Metrics != nil {
		r.Base.GET(MetricsPath, gin.WrapH(r.Metrics.Handler()))
	}

	group := r.Base.Group(LedgerPath)
	group.POST(MerchantsPath, r.createMerchant)
	group.GET(MerchantPath, r.getMerchant)
	group.PATCH(MerchantPath, r.updateMerchant)
	group.POST(TransactionsPath, r.createTransaction)
	group.GET(TransactionsPath, r.listTransactions)
	group.POST(ExpirePath, r.expire)
	group.GET(TransactionPath, r.getTransaction)
	group.POST(OutcomePath, r.assertOutcome)
}
