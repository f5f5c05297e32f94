// internal/metrics/metrics.go
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/health"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

const namespace = "launchpad"

// Collector owns the protocol's Prometheus collectors and their registry.
type Collector struct {
	registry *prometheus.Registry

	tokensCreated  prometheus.Counter
	creationFees   prometheus.Counter
	trades         *prometheus.CounterVec
	tradeVolume    *prometheus.CounterVec
	tradeFees      *prometheus.CounterVec
	migrations     *prometheus.CounterVec
	statusChanges  *prometheus.CounterVec
	curveReserve   *prometheus.GaugeVec
	networkHealthy prometheus.Gauge
	blockHeight    prometheus.Gauge
	httpInFlight   prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	droppedEvents  prometheus.CounterFunc
	subscription   events.Subscription
}

// Option customizes a Collector.
type Option func(*Collector)

// WithDroppedEvents exports the bus drop counter.
func WithDroppedEvents(stats func() events.Stats) Option {
	return func(c *Collector) {
		c.droppedEvents = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because the bus queue was full.",
		}, func() float64 { return float64(stats().DroppedEvents) })
	}
}

// NewCollector creates the collectors and registers them on a fresh registry.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tokensCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "factory",
			Name:      "tokens_created_total",
			Help:      "Total number of tokens created.",
		}),
		creationFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "factory",
			Name:      "creation_fees_total",
			Help:      "Settlement units paid as creation fees.",
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "trades_total",
			Help:      "Total number of executed curve trades.",
		}, []string{"side"}),
		tradeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "settlement_volume_total",
			Help:      "Settlement units moved by curve trades, fees excluded.",
		}, []string{"side"}),
		tradeFees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "fees_total",
			Help:      "Settlement units paid as trade fees.",
		}, []string{"side"}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "attempts_total",
			Help:      "Migration attempts by outcome.",
		}, []string{"outcome"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "status_changes_total",
			Help:      "Admin pause and unpause calls.",
		}, []string{"event"}),
		curveReserve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "reserve",
			Help:      "Settlement held by each curve after its latest trade.",
		}, []string{"token"}),
		networkHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "network_healthy",
			Help:      "1 when the latest liveness check passed.",
		}),
		blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "block_height",
			Help:      "Block height reported by the latest successful check.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "route"}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.registry.MustRegister(
		c.tokensCreated,
		c.creationFees,
		c.trades,
		c.tradeVolume,
		c.tradeFees,
		c.migrations,
		c.statusChanges,
		c.curveReserve,
		c.networkHealthy,
		c.blockHeight,
		c.httpInFlight,
		c.httpRequests,
		c.httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	if c.droppedEvents != nil {
		c.registry.MustRegister(c.droppedEvents)
	}
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registered metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Attach subscribes the collector to protocol events.
func (c *Collector) Attach(bus events.Subscriber) {
	c.subscription = events.SubscribeMany(bus, events.HandlerFunc(c.observe),
		events.TokenCreated,
		events.TradeExecuted,
		events.TokenMigrated,
		events.MigrationFailed,
		events.TokenPaused,
		events.TokenUnpaused,
	)
}

// Detach removes every bus subscription made by Attach.
func (c *Collector) Detach() {
	if c.subscription != nil {
		c.subscription.Unsubscribe()
		c.subscription = nil
	}
}

func (c *Collector) observe(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.TokenCreatedEvent:
		c.tokensCreated.Inc()
		c.creationFees.Add(float64(e.FeePaid))
	case *events.TradeExecutedEvent:
		side := string(e.Trade.Side)
		c.trades.WithLabelValues(side).Inc()
		c.tradeFees.WithLabelValues(side).Add(float64(e.Trade.Fee))
		volume := e.Trade.AmountOut
		if e.Trade.Side == types.SideBuy {
			volume = e.Trade.AmountIn - e.Trade.Fee
		}
		c.tradeVolume.WithLabelValues(side).Add(float64(volume))
		c.curveReserve.WithLabelValues(strconv.FormatUint(e.Trade.TokenIndex, 10)).Set(float64(e.Trade.Reserve))
	case *events.TokenMigratedEvent:
		outcome := "threshold"
		if e.Forced {
			outcome = "forced"
		}
		c.migrations.WithLabelValues(outcome).Inc()
		c.curveReserve.WithLabelValues(strconv.FormatUint(e.TokenIndex, 10)).Set(0)
	case *events.MigrationFailedEvent:
		c.migrations.WithLabelValues("failed").Inc()
	case *events.TokenStatusEvent:
		c.statusChanges.WithLabelValues(string(e.Type())).Inc()
	}
	return nil
}

// ObserveLiveness records the outcome of a liveness check.
func (c *Collector) ObserveLiveness(s health.Status) {
	if s.Healthy {
		c.networkHealthy.Set(1)
	} else {
		c.networkHealthy.Set(0)
	}
	if s.BlockHeight != nil {
		c.blockHeight.Set(float64(*s.BlockHeight))
	}
}

// Middleware records request counts and latencies per chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
