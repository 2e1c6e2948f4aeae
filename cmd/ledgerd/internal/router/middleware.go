package router

import (
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"ledgerly.dev/ledger/api"
	"ledgerly.dev/ledger/metrics"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request-id"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set(RequestIDKey, id)
		ctx.Header(RequestIDHeader, id)
		ctx.Next()
	}
}

func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		fields := []zap.Field{
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client", ctx.ClientIP()),
			zap.String("request-id", ctx.GetString(RequestIDKey)),
		}
		if len(ctx.Errors) > 0 {
			fields = append(fields, zap.String("errors", ctx.Errors.String()))
		}
		logger.Info("request", fields...)
	}
}

func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(ctx *gin.Context, recovered any) {
		logger.Error("panic while serving request",
			zap.Any("recovered", recovered),
			zap.String("request-id", ctx.GetString(RequestIDKey)),
			zap.Stack("stack"),
		)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, api.Error{Error: InternalError})
	})
}

func Cors(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

type EngineConfig struct {
	Logger *zap.Logger
	// Times every request when set
	Metrics *metrics.Collector
	// Browser origins allowed to call the API. Empty disables CORS
	CorsOrigins []string
}

// NewEngine returns a gin engine with the middleware every route shares
func NewEngine(config EngineConfig) (engine *gin.Engine) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine = gin.New()
	engine.Use(RequestID(), AccessLog(logger), Recovery(logger))
	if len(config.CorsOrigins) > 0 {
		engine.Use(Cors(config.CorsOrigins))
	}
	if config.Metrics != nil {
		engine.Use(config.Metrics.Middleware())
	}
	return engine
}
