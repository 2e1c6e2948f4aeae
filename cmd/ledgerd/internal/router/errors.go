package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"ledgerly.dev/ledger/api"
	"ledgerly.dev/ledger/ledger"
)

// InternalError replaces the message of every unexpected error
const InternalError = "internal error"

// StatusFor maps ledger errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyExists), errors.Is(err, ledger.ErrConflictingOutcome):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrMerchantInactive):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) fail(ctx *gin.Context, err error) {
	ctx.Error(err)

	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		r.logger().Error("request failed",
			zap.String("route", ctx.FullPath()),
			zap.String("request-id", ctx.GetString(RequestIDKey)),
			zap.Error(err),
		)
		message = InternalError
	}
	ctx.AbortWithStatusJSON(status, api.Error{Error: message})
}

func (r *Router) malformed(ctx *gin.Context, err error) {
	ctx.Error(err)
	ctx.AbortWithStatusJSON(http.StatusBadRequest, api.Error{Error: "malformed request: " + err.Error()})
}
