// Package metrics holds the agent's Prometheus instruments.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"raccolta/internal/domain/counter"
	"raccolta/internal/domain/syncer"
)

const namespace = "raccolta"

// Metrics holds all Prometheus metrics of one process.
type Metrics struct {
	registry *prometheus.Registry

	// Numbering
	numbersIssued *prometheus.CounterVec

	// Sync
	documentsSynced   *prometheus.CounterVec
	documentsFailed   *prometheus.CounterVec
	permanentFailures *prometheus.CounterVec
	retryQueueSize    prometheus.Gauge
	passDuration      *prometheus.HistogramVec
	online            prometheus.Gauge

	// Storage
	storageBackend *prometheus.GaugeVec

	// Local API
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var (
	_ counter.Metrics = (*Metrics)(nil)
	_ syncer.Metrics  = (*Metrics)(nil)
)

// New creates the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		numbersIssued: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "numbers_issued_total",
				Help:      "Document numbers issued or reserved",
			},
			[]string{"doc_type"},
		),

		documentsSynced: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_synced_total",
				Help:      "Documents accepted by the sync endpoint",
			},
			[]string{"doc_type"},
		),
		documentsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_sync_failures_total",
				Help:      "Failed document sync attempts",
			},
			[]string{"doc_type"},
		),
		permanentFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_sync_permanent_failures_total",
				Help:      "Documents moved to error after exhausting retries",
			},
			[]string{"doc_type"},
		),
		retryQueueSize: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sync_retry_queue_size",
				Help:      "Documents waiting for a retry",
			},
		),
		passDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_pass_duration_seconds",
				Help:      "Duration of sync passes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		online: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "remote_online",
				Help:      "1 when the sync endpoint is reachable",
			},
		),

		storageBackend: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "storage_backend",
				Help:      "Active storage backend (1 for the one in use)",
			},
			[]string{"backend"},
		),

		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Local API requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Local API request duration",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// NumbersIssued implements counter.Metrics.
func (m *Metrics) NumbersIssued(docType string, n int) {
	m.numbersIssued.WithLabelValues(docType).Add(float64(n))
}

// DocumentSynced implements syncer.Metrics.
func (m *Metrics) DocumentSynced(docType string) {
	m.documentsSynced.WithLabelValues(docType).Inc()
}

// DocumentFailed implements syncer.Metrics.
func (m *Metrics) DocumentFailed(docType string) {
	m.documentsFailed.WithLabelValues(docType).Inc()
}

// PermanentFailure implements syncer.Metrics.
func (m *Metrics) PermanentFailure(docType string) {
	m.permanentFailures.WithLabelValues(docType).Inc()
}

// QueueLength implements syncer.Metrics.
func (m *Metrics) QueueLength(n int) {
	m.retryQueueSize.Set(float64(n))
}

// PassCompleted implements syncer.Metrics.
func (m *Metrics) PassCompleted(kind string, d time.Duration) {
	m.passDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// SetOnline records connectivity.
func (m *Metrics) SetOnline(online bool) {
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

// SetStorageBackend marks the backend in use.
func (m *Metrics) SetStorageBackend(name string) {
	m.storageBackend.Reset()
	m.storageBackend.WithLabelValues(name).Set(1)
}

// ObserveRequest records one local API request.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
