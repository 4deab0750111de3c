// Package monitoring exposes Prometheus metrics for the preview service.
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	BundleRequests  *prometheus.CounterVec
	GenerationSwaps prometheus.Counter
	BundleFiles     prometheus.Gauge

	IntentsEmitted *prometheus.CounterVec
	ScriptDuration prometheus.Histogram
	SurfaceLoads   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a metrics collector with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(c prometheus.Collector) {
		reg.MustRegister(c)
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_http_requests_total",
				Help: "Total HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"method", "path"},
		),
		BundleRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_bundle_requests_total",
				Help: "Virtual bundle requests by outcome (hit, miss)",
			},
			[]string{"outcome"},
		),
		GenerationSwaps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "preview_bundle_generation_swaps_total",
				Help: "Number of whole-bundle replacements",
			},
		),
		BundleFiles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_bundle_files",
				Help: "Files in the live bundle generation",
			},
		),
		IntentsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_intents_emitted_total",
				Help: "Intents emitted by the protocol bridge, by kind",
			},
			[]string{"kind"},
		),
		ScriptDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "preview_script_execution_seconds",
				Help:    "Creative script execution duration in the sandbox VM",
				Buckets: []float64{.001, .01, .05, .1, .5, 1, 5},
			},
		),
		SurfaceLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_surface_loads_total",
				Help: "Surface loads by outcome (ready, error)",
			},
			[]string{"outcome"},
		),
		registry: reg,
	}

	factory(m.RequestsTotal)
	factory(m.RequestDuration)
	factory(m.BundleRequests)
	factory(m.GenerationSwaps)
	factory(m.BundleFiles)
	factory(m.IntentsEmitted)
	factory(m.ScriptDuration)
	factory(m.SurfaceLoads)

	return m
}

// Handler returns a gin handler serving the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request counts and durations.
func Middleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		m.RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
