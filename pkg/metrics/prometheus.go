// Package metrics provides Prometheus metrics for the facegate service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Recognition metrics
	recognitionsTotal prometheus.Counter
	facesMatched      prometheus.Counter
	facesUnknown      prometheus.Counter
	matchLatency      prometheus.Histogram

	// Enrollment metrics
	enrollmentsTotal prometheus.Counter
	vectorsEnrolled  prometheus.Counter
	vectorsRejected  prometheus.Counter

	// Embedding store metrics
	storeVectors            prometheus.Gauge
	storeLabels             prometheus.Gauge
	snapshotRebuilds        prometheus.Counter
	snapshotRebuildDuration prometheus.Histogram

	// Dispatch metrics
	dispatchSent    prometheus.Counter
	dispatchSkipped prometheus.Counter
	dispatchFailed  prometheus.Counter

	// Broadcast metrics
	broadcastSubscribers  prometheus.Gauge
	broadcastSendFailures prometheus.Counter

	// Attendance metrics
	attendanceAccepted  prometheus.Counter
	attendanceRejected  prometheus.Counter
	attendanceRecords   prometheus.Gauge
	ledgerWriteFailures prometheus.Counter

	// Sighting queue metrics
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueDropped  prometheus.Counter
	workerCount   prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager backed by a custom registry so the default Go
// collectors do not pollute the scrape output.
var globalManager *Manager                    //nolint:gochecknoglobals // singleton metrics manager
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "facegate",
		subsystem:        "recognition",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.recognitionsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recognitions_total",
		Help:      "Total number of recognition passes over inbound frames",
	})

	m.facesMatched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "faces_matched_total",
		Help:      "Total number of probe faces matched to a known label",
	})

	m.facesUnknown = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "faces_unknown_total",
		Help:      "Total number of probe faces that did not match any label",
	})

	m.matchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_latency_milliseconds",
		Help:      "Histogram of matching latency per frame in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.enrollmentsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "enrollments_total",
		Help:      "Total number of enrollment requests that saved at least one vector",
	})

	m.vectorsEnrolled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "vectors_enrolled_total",
		Help:      "Total number of reference vectors appended to the store",
	})

	m.vectorsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "vectors_rejected_total",
		Help:      "Total number of vectors rejected for dimension mismatch",
	})

	m.storeVectors = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_vectors",
		Help:      "Current number of reference vectors in the embedding store",
	})

	m.storeLabels = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_labels",
		Help:      "Current number of enrolled labels in the embedding store",
	})

	m.snapshotRebuilds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_snapshot_rebuilds_total",
		Help:      "Total number of embedding store snapshot rebuilds",
	})

	m.snapshotRebuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_snapshot_rebuild_duration_milliseconds",
		Help:      "Embedding store snapshot rebuild duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.dispatchSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_sent_total",
		Help:      "Total number of webhook events delivered",
	})

	m.dispatchSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_skipped_total",
		Help:      "Total number of webhook events skipped (cooldown or disabled)",
	})

	m.dispatchFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_failed_total",
		Help:      "Total number of webhook deliveries that failed",
	})

	m.broadcastSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_subscribers",
		Help:      "Current number of live broadcast subscribers",
	})

	m.broadcastSendFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_send_failures_total",
		Help:      "Total number of subscriber sends that failed and caused pruning",
	})

	m.attendanceAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attendance_accepted_total",
		Help:      "Total number of sightings accepted by the dedup policy",
	})

	m.attendanceRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attendance_rejected_total",
		Help:      "Total number of sightings rejected by the dedup policy",
	})

	m.attendanceRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attendance_records",
		Help:      "Current number of per-day attendance records held",
	})

	m.ledgerWriteFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_write_failures_total",
		Help:      "Total number of attendance persistence failures (best-effort)",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sighting_queue_size",
		Help:      "Current size of the sighting queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sighting_queue_capacity",
		Help:      "Maximum sighting queue capacity",
	})

	m.queueDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sighting_queue_dropped_total",
		Help:      "Total number of sightings dropped due to backpressure",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of sighting workers",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Handler returns an http.Handler serving the custom registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// Package-level helpers operating on the global manager.

func RecordRecognition()            { globalManager.recognitionsTotal.Inc() }
func RecordMatch()                  { globalManager.facesMatched.Inc() }
func RecordUnknown()                { globalManager.facesUnknown.Inc() }
func RecordMatchLatency(ms float64) { globalManager.matchLatency.Observe(ms) }
func RecordEnrollment()             { globalManager.enrollmentsTotal.Inc() }
func RecordVectorsEnrolled(n int)   { globalManager.vectorsEnrolled.Add(float64(n)) }
func RecordVectorRejected()         { globalManager.vectorsRejected.Inc() }

func RecordSnapshotRebuild(ms float64) {
	globalManager.snapshotRebuilds.Inc()
	globalManager.snapshotRebuildDuration.Observe(ms)
}

func UpdateStoreSize(vectors, labels int) {
	globalManager.storeVectors.Set(float64(vectors))
	globalManager.storeLabels.Set(float64(labels))
}

func RecordDispatchSent()    { globalManager.dispatchSent.Inc() }
func RecordDispatchSkipped() { globalManager.dispatchSkipped.Inc() }
func RecordDispatchFailed()  { globalManager.dispatchFailed.Inc() }

func UpdateBroadcastSubscribers(n int) { globalManager.broadcastSubscribers.Set(float64(n)) }
func RecordBroadcastSendFailure()      { globalManager.broadcastSendFailures.Inc() }

func RecordAttendanceAccepted()     { globalManager.attendanceAccepted.Inc() }
func RecordAttendanceRejected()     { globalManager.attendanceRejected.Inc() }
func UpdateAttendanceRecords(n int) { globalManager.attendanceRecords.Set(float64(n)) }
func RecordLedgerWriteFailure()     { globalManager.ledgerWriteFailures.Inc() }

func UpdateQueueSize(n int)     { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }
func RecordQueueDropped()       { globalManager.queueDropped.Inc() }
func UpdateWorkerCount(n int)   { globalManager.workerCount.Set(float64(n)) }

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}
