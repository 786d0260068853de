package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storerating"

// Metrics holds the collectors on a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
	RatingMutations *prometheus.CounterVec
	RatingConflicts prometheus.Counter
	Reconciled      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		RatingMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rating_mutations_total",
				Help:      "Committed rating mutations",
			},
			[]string{"status"}, // created|updated|deleted
		),
		RatingConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rating_conflict_retries_total",
				Help:      "Duplicate (user, store) inserts retried through the update path",
			},
		),
		Reconciled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_aggregates_reconciled_total",
				Help:      "Stores recomputed by the reconciliation job",
			},
		),
	}

	m.Registry.MustRegister(
		m.RequestsTotal,
		m.RequestLatency,
		m.RatingMutations,
		m.RatingConflicts,
		m.Reconciled,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Middleware records count and latency per route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// ObserveRating is nil-safe so services can run without metrics in tests.
func (m *Metrics) ObserveRating(status string) {
	if m == nil {
		return
	}
	m.RatingMutations.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.RatingConflicts.Inc()
}

func (m *Metrics) ObserveReconciled(n int) {
	if m == nil {
		return
	}
	m.Reconciled.Add(float64(n))
}
