package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"ledgerly.dev/ledger/ledger"
)

const namespace = "ledger"

// Collector exposes ledger activity to Prometheus. It receives ledger events
// as a ledger.Publisher and times HTTP requests through Middleware.
type Collector struct {
	events   *prometheus.CounterVec
	expired  prometheus.Counter
	requests *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

var _ ledger.Publisher = (*Collector)(nil)

// New registers the collectors on registry. A nil registry uses a private one.
func New(registry *prometheus.Registry) (c *Collector, err error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	events, err := register(registry, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Committed ledger changes by event type.",
	}, []string{"type"}))
	if err != nil {
		return nil, err
	}
	expired, err := register(registry, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_expired_total",
		Help:      "Transactions moved to EXPIRED by the sweeper.",
	}))
	if err != nil {
		return nil, err
	}
	requests, err := register(registry, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}
	return &Collector{events: events, expired: expired, requests: requests, gatherer: registry}, nil
}

// register returns the collector already registered under the same name, if any
func register[T prometheus.Collector](registry *prometheus.Registry, collector T) (registered T, err error) {
	err = registry.Register(collector)
	if err == nil {
		return collector, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(T)
		if ok {
			return existing, nil
		}
	}
	return registered, fmt.Errorf("failed to register collector: %w", err)
}

func (c *Collector) Publish(ctx context.Context, event ledger.Event) error {
	c.events.WithLabelValues(string(event.Type)).Inc()
	if event.Type == ledger.EventTransactionExpired {
		c.expired.Inc()
	}
	return nil
}

// Middleware observes the latency of every request, labelled by route template
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.requests.
			WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
