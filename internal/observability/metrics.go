// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streamsnip"

// Metrics holds all application metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Clip metrics
	ClipsCreated    prometheus.Counter
	ClipsCompleted  prometheus.Counter
	ClipsSkipped    prometheus.Counter
	ClipsFailed     prometheus.Counter
	ClipsInProgress prometheus.Gauge
	ClipDuration    prometheus.Histogram
	BatchesTotal    prometheus.Counter

	// Storage metrics
	CleanupFilesTotal prometheus.Counter

	// Catalog metrics
	CatalogProbes    *prometheus.CounterVec
	CatalogCacheHits prometheus.Counter

	// Metadata provider metrics
	MetadataFetches *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Proxy metrics
	ProxyRequestsTotal *prometheus.CounterVec
	ProxyFailures      *prometheus.CounterVec
	ProxiesAvailable   prometheus.Gauge

	// Engine metrics
	EngineRequestsTotal *prometheus.CounterVec
	EngineErrors        *prometheus.CounterVec
}

// New creates all application metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)

	metrics := &Metrics{
		registry: reg,

		// Clip metrics
		ClipsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clips",
			Name:      "created_total",
			Help:      "Total number of clips dispatched to workers",
		}),
		ClipsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clips",
			Name:      "completed_total",
			Help:      "Total number of clips produced successfully",
		}),
		ClipsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clips",
			Name:      "skipped_total",
			Help:      "Total number of clips skipped because the output already existed",
		}),
		ClipsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clips",
			Name:      "failed_total",
			Help:      "Total number of clips that failed",
		}),
		ClipsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "clips",
			Name:      "in_progress",
			Help:      "Number of clips currently being produced",
		}),
		ClipDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "clips",
			Name:      "duration_seconds",
			Help:      "Histogram of clip download duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		BatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clips",
			Name:      "batches_total",
			Help:      "Total number of batches run",
		}),

		// Storage metrics
		CleanupFilesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cleanup_files_total",
			Help:      "Total number of partial files removed after failed downloads",
		}),

		// Catalog metrics
		CatalogProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "probes_total",
			Help:      "Total number of format probes sent to the engine",
		}, []string{"status"}),
		CatalogCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "cache_hits_total",
			Help:      "Total number of format lookups served from the cache",
		}),

		// Metadata provider metrics
		MetadataFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "fetches_total",
			Help:      "Total number of clip list requests",
		}, []string{"status"}),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		// Proxy metrics
		ProxyRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of engine invocations made through proxies",
		}, []string{"proxy"}),
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of proxy failures",
		}, []string{"proxy"}),
		ProxiesAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "available",
			Help:      "Number of currently available proxies",
		}),

		// Engine metrics
		EngineRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Total number of engine invocations",
		}, []string{"engine", "op", "status"}),
		EngineErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Total number of engine errors",
		}, []string{"engine", "error_type"}),
	}

	return metrics
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ClipTimer returns a function to record clip duration.
func (m *Metrics) ClipTimer() func() {
	start := time.Now()

	return func() {
		m.ClipDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBatch increments the batch counter.
func (m *Metrics) RecordBatch() {
	m.BatchesTotal.Inc()
}

// RecordClipCreated increments the clips created counter.
func (m *Metrics) RecordClipCreated() {
	m.ClipsCreated.Inc()
	m.ClipsInProgress.Inc()
}

// RecordClipCompleted records a produced clip.
func (m *Metrics) RecordClipCompleted() {
	m.ClipsCompleted.Inc()
	m.ClipsInProgress.Dec()
}

// RecordClipSkipped records a clip whose output already existed.
func (m *Metrics) RecordClipSkipped() {
	m.ClipsSkipped.Inc()
	m.ClipsInProgress.Dec()
}

// RecordClipFailed records a failed clip.
func (m *Metrics) RecordClipFailed() {
	m.ClipsFailed.Inc()
	m.ClipsInProgress.Dec()
}

// RecordCleanup records removed partial files.
func (m *Metrics) RecordCleanup(files int) {
	m.CleanupFilesTotal.Add(float64(files))
}

// RecordProbe records a format probe outcome.
func (m *Metrics) RecordProbe(status string) {
	m.CatalogProbes.WithLabelValues(status).Inc()
}

// RecordCatalogHit records a format lookup served from cache.
func (m *Metrics) RecordCatalogHit() {
	m.CatalogCacheHits.Inc()
}

// RecordMetadataFetch records a clip list request outcome.
func (m *Metrics) RecordMetadataFetch(status string) {
	m.MetadataFetches.WithLabelValues(status).Inc()
}

// RecordEngineRequest records an engine invocation.
func (m *Metrics) RecordEngineRequest(engine, op, status string) {
	m.EngineRequestsTotal.WithLabelValues(engine, op, status).Inc()
}

// RecordEngineError records an engine error.
func (m *Metrics) RecordEngineError(engine, errorType string) {
	m.EngineErrors.WithLabelValues(engine, errorType).Inc()
}

// RecordProxyRequest records a proxy request.
func (m *Metrics) RecordProxyRequest(proxy string) {
	m.ProxyRequestsTotal.WithLabelValues(proxy).Inc()
}

// RecordProxyFailure records a proxy failure.
func (m *Metrics) RecordProxyFailure(proxy string) {
	m.ProxyFailures.WithLabelValues(proxy).Inc()
}

// SetProxiesAvailable sets the number of available proxies.
func (m *Metrics) SetProxiesAvailable(count int) {
	m.ProxiesAvailable.Set(float64(count))
}
