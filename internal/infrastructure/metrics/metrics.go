// Package metrics exposes service counters and latencies to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pharmalytics/internal/domain/analytics"
	"pharmalytics/pkg/resilience"
)

const namespace = "pharmalytics"

var _ analytics.Metrics = (*Collector)(nil)

// Collector owns the service's Prometheus collectors. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	cacheLookups  *prometheus.CounterVec
	invalidations prometheus.Counter
	queries       *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	reports       *prometheus.HistogramVec
	httpRequests  *prometheus.HistogramVec
	warmRuns      *prometheus.CounterVec
}

// New registers the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	c := &Collector{
		gatherer: g,
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Analytics cache lookups by result.",
		}, []string{"result"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidated_keys_total",
			Help:      "Cache keys removed by stock change notifications.",
		}),
		queries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "query_duration_seconds",
			Help:      "Storage query latency by query and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "retries_total",
			Help:      "Retry attempts after transient failures.",
		}, []string{"operation"}),
		reports: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "report_duration_seconds",
			Help:      "Report latency including cache hits.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"mode", "status"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		warmRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "warmer",
			Name:      "pages_total",
			Help:      "Pages recomputed by the cache warmer by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(c.cacheLookups, c.invalidations, c.queries, c.retries, c.reports, c.httpRequests, c.warmRuns)
	return c
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// CacheLookup implements analytics.Metrics.
func (c *Collector) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// QueryCompleted implements analytics.Metrics.
func (c *Collector) QueryCompleted(query string, kind resilience.ErrorKind, elapsed time.Duration) {
	if c == nil {
		return
	}
	outcome := string(kind)
	if kind == resilience.KindNone {
		outcome = "ok"
	}
	c.queries.WithLabelValues(query, outcome).Observe(elapsed.Seconds())
}

// RetryAttempt implements analytics.Metrics.
func (c *Collector) RetryAttempt(operation string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(operation).Inc()
}

// ReportCompleted implements analytics.Metrics.
func (c *Collector) ReportCompleted(mode analytics.Mode, success bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.reports.WithLabelValues(string(mode), status(success)).Observe(elapsed.Seconds())
}

// CacheInvalidated records keys removed by the invalidator.
func (c *Collector) CacheInvalidated(_ string, removed int) {
	if c == nil || removed <= 0 {
		return
	}
	c.invalidations.Add(float64(removed))
}

// HTTPRequest records one served request. route is the matched pattern, not
// the raw path.
func (c *Collector) HTTPRequest(method, route string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// WarmCompleted records one warmer page refresh.
func (c *Collector) WarmCompleted(success bool) {
	if c == nil {
		return
	}
	c.warmRuns.WithLabelValues(status(success)).Inc()
}

func status(success bool) string {
	if success {
		return "ok"
	}
	return "error"
}
