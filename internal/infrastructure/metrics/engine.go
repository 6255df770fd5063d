// Package metrics provides Prometheus metrics for the trust engine
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

// EngineMetrics contains Prometheus metrics for scans, reconciliation,
// reviews and lock contention
type EngineMetrics struct {
	scansTotal      *prometheus.CounterVec
	scanDuration    *prometheus.HistogramVec
	reconcileFields *prometheus.CounterVec
	reviewsTotal    *prometheus.CounterVec
	reviewsExpired  prometheus.Counter
	lockWait        *prometheus.HistogramVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewEngineMetrics creates and registers the engine metrics
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentum_document_scans_total",
			Help: "Total number of processed document scans",
		},
		[]string{"document_class", "status"},
	)

	m.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rentum_document_scan_duration_seconds",
			Help:    "Time taken to extract a document",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"document_class"},
	)

	m.reconcileFields = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentum_reconcile_fields_total",
			Help: "Reconciled fields by outcome",
		},
		[]string{"field", "outcome"}, // outcome: applied, kept
	)

	m.reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentum_review_responses_total",
			Help: "Accepted review responses by risk assessment",
		},
		[]string{"risk"},
	)

	m.reviewsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rentum_review_requests_expired_total",
			Help: "Review requests moved to expired",
		},
	)

	m.lockWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rentum_lock_wait_seconds",
			Help:    "Time spent waiting for keyed locks",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"scope"}, // key prefix, e.g. profile
	)

	m.collectors = []prometheus.Collector{
		m.scansTotal,
		m.scanDuration,
		m.reconcileFields,
		m.reviewsTotal,
		m.reviewsExpired,
		m.lockWait,
	}
}

// Describe implements the Collector interface
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordScan records a finalized scan and its extraction time
func (m *EngineMetrics) RecordScan(class models.DocumentClass, status models.ScanStatus, duration time.Duration) {
	m.scansTotal.WithLabelValues(string(class), string(status)).Inc()
	m.scanDuration.WithLabelValues(string(class)).Observe(duration.Seconds())
}

// RecordReconcileField records whether a field was overwritten or kept
func (m *EngineMetrics) RecordReconcileField(field string, applied bool) {
	outcome := "kept"
	if applied {
		outcome = "applied"
	}
	m.reconcileFields.WithLabelValues(field, outcome).Inc()
}

// RecordReviewSubmission records an accepted review response
func (m *EngineMetrics) RecordReviewSubmission(risk models.RiskLevel) {
	m.reviewsTotal.WithLabelValues(string(risk)).Inc()
}

// RecordReviewExpired records expired review requests
func (m *EngineMetrics) RecordReviewExpired(count int) {
	m.reviewsExpired.Add(float64(count))
}

// RecordLockWait records lock wait time labelled by key scope
func (m *EngineMetrics) RecordLockWait(key string, duration time.Duration) {
	m.lockWait.WithLabelValues(lockScope(key)).Observe(duration.Seconds())
}

// lockScope strips the entity id so label cardinality stays bounded
func lockScope(key string) string {
	scope, _, found := strings.Cut(key, ":")
	if !found {
		return "other"
	}
	return scope
}
