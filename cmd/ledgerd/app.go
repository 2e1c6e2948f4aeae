package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"ledgerly.dev/ledger/cmd/ledgerd/internal/router"
	"ledgerly.dev/ledger/cmd/ledgerd/internal/seed"
	"ledgerly.dev/ledger/cmd/ledgerd/internal/worker"
	"ledgerly.dev/ledger/events"
	"ledgerly.dev/ledger/ledger"
	"ledgerly.dev/ledger/metrics"
)

// Module wires the daemon. Hooks stop in reverse order: worker, server, redis, storage.
func Module(cfg Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newCollector,
			newStorage,
			newPublisher,
			newLedger,
			newEngine,
			newServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Invoke(applySeed, func(*http.Server) {}, startWorker),
	)
}

func newLogger(lc fx.Lifecycle, cfg Config) (logger *zap.Logger, err error) {
	logger, err = cfg.Logger()
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() {
		logger.Sync()
	}))
	return logger, nil
}

func newCollector() (collector *metrics.Collector, err error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(registry)
}

func newStorage(lc fx.Lifecycle, cfg Config, logger *zap.Logger) (storage ledger.Storage, err error) {
	storage, err = cfg.OpenStorage(logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(storage.Close))
	return storage, nil
}

func newPublisher(lc fx.Lifecycle, cfg Config, collector *metrics.Collector, logger *zap.Logger) ledger.Publisher {
	publishers := events.Multi{collector}

	client := cfg.RedisClient()
	if client == nil {
		return publishers
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			err := client.Ping(ctx).Err()
			if err != nil {
				// Events are best effort; the ledger keeps working without redis
				logger.Warn("redis unavailable", zap.String("address", cfg.Redis.Address), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return append(publishers, events.New(events.Config{Client: client, Channel: cfg.Redis.Channel}))
}

func newLedger(cfg Config, storage ledger.Storage, publisher ledger.Publisher, logger *zap.Logger) *ledger.Ledger {
	return ledger.New(ledger.Config{
		Storage:          storage,
		Publisher:        publisher,
		Logger:           logger.Named("ledger"),
		SweepConcurrency: cfg.SweepConcurrency,
	})
}

func newEngine(cfg Config, l *ledger.Ledger, collector *metrics.Collector, logger *zap.Logger) *gin.Engine {
	engine := router.NewEngine(router.EngineConfig{
		Logger:      logger.Named("http"),
		Metrics:     collector,
		CorsOrigins: cfg.CorsOrigins,
	})
	r := router.Router{
		Ledger:  l,
		Base:    engine,
		Logger:  logger.Named("router"),
		Metrics: collector,
	}
	r.Register()
	return engine
}

func newServer(lc fx.Lifecycle, cfg Config, engine *gin.Engine, logger *zap.Logger) *http.Server {
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listener, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			logger.Info("serving http", zap.String("address", listener.Addr().String()))
			go func() {
				err := server.Serve(listener)
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(ctx)
		},
	})
	return server
}

func applySeed(lc fx.Lifecycle, cfg Config, l *ledger.Ledger, logger *zap.Logger) {
	if !cfg.Seed {
		return
	}
	lc.Append(fx.StartHook(func(ctx context.Context) error {
		_, err := seed.Apply(ctx, l, logger.Named("seed"))
		return err
	}))
}

func startWorker(lc fx.Lifecycle, cfg Config, l *ledger.Ledger, logger *zap.Logger) {
	if cfg.SweepInterval <= 0 {
		return
	}
	w := worker.NewSweepWorker(worker.Config{
		Ledger:   l,
		Interval: cfg.SweepInterval,
		Logger:   logger.Named("worker"),
	})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go w.Start(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			w.Stop()
			return nil
		},
	})
}
