// Package metrics exposes Prometheus counters for sweeps and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SweepLeads    *prometheus.CounterVec
	SweepDuration *prometheus.HistogramVec
	SweepRuns     *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SweepLeads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nurturing_sweep_leads_total",
				Help: "Leads handled by nurturing sweeps by outcome",
			},
			[]string{"sweep", "outcome"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nurturing_sweep_duration_seconds",
				Help:    "Wall time of one nurturing sweep",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"sweep"},
		),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nurturing_sweep_runs_total",
				Help: "Completed nurturing sweep runs",
			},
			[]string{"sweep"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SweepLeads,
		m.SweepDuration,
		m.SweepRuns,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// ObserveSweep records the outcome counts of one sweep run.
func (m *Metrics) ObserveSweep(sweep string, processed, succeeded, failed, skipped int, elapsed time.Duration) {
	m.SweepRuns.WithLabelValues(sweep).Inc()
	m.SweepDuration.WithLabelValues(sweep).Observe(elapsed.Seconds())
	m.SweepLeads.WithLabelValues(sweep, "processed").Add(float64(processed))
	m.SweepLeads.WithLabelValues(sweep, "succeeded").Add(float64(succeeded))
	m.SweepLeads.WithLabelValues(sweep, "failed").Add(float64(failed))
	m.SweepLeads.WithLabelValues(sweep, "skipped").Add(float64(skipped))
}

// Middleware counts requests by route template, not raw path.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
