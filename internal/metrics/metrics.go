// Package metrics exposes Prometheus instrumentation for the marker service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "towermap"

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	MarkersCreated    prometheus.Counter
	MarkersDeleted    prometheus.Counter
	MarkerFailures    *prometheus.CounterVec
	OrphanBlobsPurged prometheus.Counter
	ListFailures      prometheus.Counter
	VerifyAttempts    *prometheus.CounterVec
}

// New creates a registry with process/Go collectors and the service metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		MarkersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markers_created_total",
			Help:      "Markers successfully created",
		}),
		MarkersDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markers_deleted_total",
			Help:      "Markers whose row existed and was deleted",
		}),
		MarkerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marker_operation_failures_total",
			Help:      "Failed marker operations by operation",
		}, []string{"operation"}),
		OrphanBlobsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_blobs_removed_total",
			Help:      "Image blobs removed after the marker insert failed",
		}),
		ListFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marker_list_failures_total",
			Help:      "Marker listings answered with an empty result after a storage error",
		}),
		VerifyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_token_verifications_total",
			Help:      "ID token verification attempts by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.MarkersCreated,
		m.MarkersDeleted,
		m.MarkerFailures,
		m.OrphanBlobsPurged,
		m.ListFailures,
		m.VerifyAttempts,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// MarkerCreated counts a created marker.
func (m *Metrics) MarkerCreated() {
	if m == nil {
		return
	}
	m.MarkersCreated.Inc()
}

// MarkerDeleted counts a deleted marker.
func (m *Metrics) MarkerDeleted() {
	if m == nil {
		return
	}
	m.MarkersDeleted.Inc()
}

// MarkerFailed counts a failed create or delete.
func (m *Metrics) MarkerFailed(operation string) {
	if m == nil {
		return
	}
	m.MarkerFailures.WithLabelValues(operation).Inc()
}

// OrphanBlobRemoved counts a compensating blob delete.
func (m *Metrics) OrphanBlobRemoved() {
	if m == nil {
		return
	}
	m.OrphanBlobsPurged.Inc()
}

// ListFailed counts a fail-soft listing.
func (m *Metrics) ListFailed() {
	if m == nil {
		return
	}
	m.ListFailures.Inc()
}

// VerifyAttempt counts an ID token verification by result.
func (m *Metrics) VerifyAttempt(result string) {
	if m == nil {
		return
	}
	m.VerifyAttempts.WithLabelValues(result).Inc()
}
