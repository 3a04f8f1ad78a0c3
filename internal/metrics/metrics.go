// Package metrics contains the Prometheus metrics of the relay server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics of the relay.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	UpstreamFailures *prometheus.CounterVec
	PipelineRuns     *prometheus.CounterVec
}

// New creates the metrics and registers them on a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speech_relay_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		UpstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speech_relay_upstream_duration_seconds",
			Help:    "Duration of requests to remote speech and generative services",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}, []string{"service"}),
		UpstreamFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speech_relay_upstream_failures_total",
			Help: "Total number of failed requests to remote services",
		}, []string{"service"}),
		PipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speech_relay_pipeline_runs_total",
			Help: "Total number of websocket pipeline runs by final state",
		}, []string{"state"}),
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route string, statusCode int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamCall records the duration and outcome of a remote service call.
func (m *Metrics) RecordUpstreamCall(service string, start time.Time, err error) {
	m.UpstreamDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())

	if err != nil {
		m.UpstreamFailures.WithLabelValues(service).Inc()
	}
}

// RecordPipelineRun records a finished pipeline run.
func (m *Metrics) RecordPipelineRun(state string) {
	m.PipelineRuns.WithLabelValues(state).Inc()
}

// WithMetrics wraps an HTTP handler with request metrics collection.
func (m *Metrics) WithMetrics(route string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler.ServeHTTP(ww, r)

		m.RecordHTTPRequest(route, ww.statusCode)
	})
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}

	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
