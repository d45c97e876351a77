// Package metrics provides Prometheus metrics for the storyrank service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// eloSwingBuckets cover 0..KFactor; a single comparison never moves a
// rating by more than 32 points.
var eloSwingBuckets = []float64{1, 2, 4, 8, 12, 16, 20, 24, 28, 32} //nolint:gochecknoglobals // fixed bucket layout

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Rating activity
	comparisonsProcessed prometheus.Counter
	comparisonsDuplicate prometheus.Counter
	comparisonsFailed    prometheus.Counter
	eloSwing             prometheus.Histogram
	rankBatches          prometheus.Counter
	rankBatchSize        prometheus.Histogram
	sliderUpdates        prometheus.Counter
	sessionAggregations  prometheus.Counter
	storiesCreated       prometheus.Counter
	storiesTotal         prometheus.Gauge

	// Queue and workers
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram
	workerCount            prometheus.Gauge
	workerActiveCount      prometheus.Gauge
	workerProcessing       prometheus.Histogram
	workerErrors           prometheus.Counter

	// Storage
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Sessions
	wsConnections prometheus.Gauge
	wsBroadcasts  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level recorders

// customRegistry keeps the default Go collectors off /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "storyrank",
		subsystem:        "rating",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval is how often callers should refresh gauges.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recorders write to collectors.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) name(n string) string { return m.metricPrefix + n }

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: buckets, ConstLabels: m.customLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.comparisonsProcessed = auto.NewCounter(m.counter("comparisons_processed_total", "Pairwise comparisons applied to ratings"))
	m.comparisonsDuplicate = auto.NewCounter(m.counter("comparisons_duplicate_total", "Comparisons rejected by comparison id"))
	m.comparisonsFailed = auto.NewCounter(m.counter("comparisons_failed_total", "Comparisons that could not be applied"))
	m.eloSwing = auto.NewHistogram(m.histogram("elo_swing_points", "Rating points moved by one comparison", eloSwingBuckets))
	m.rankBatches = auto.NewCounter(m.counter("rank_batches_total", "Drag-and-drop orderings applied"))
	m.rankBatchSize = auto.NewHistogram(m.histogram("rank_batch_size", "Stories per ordering", []float64{1, 2, 5, 10, 20, 50, 100, 250}))
	m.sliderUpdates = auto.NewCounter(m.counter("slider_updates_total", "Story ratings written from slider positions"))
	m.sessionAggregations = auto.NewCounter(m.counter("session_aggregations_total", "Session consensus results applied"))
	m.storiesCreated = auto.NewCounter(m.counter("stories_created_total", "Stories created"))
	m.storiesTotal = auto.NewGauge(m.gauge("stories_total", "Stories held across tenants"))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Comparisons waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counter("queue_enqueue_total", "Comparisons enqueued"))
	m.queueDequeued = auto.NewCounter(m.counter("queue_dequeue_total", "Comparisons dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", nil))
	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Configured comparison workers"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count", "Workers currently applying a comparison"))
	m.workerProcessing = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds", "Time to apply one comparison", nil))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Worker failures"))

	m.repositoryUpdateLatency = auto.NewHistogram(m.histogram("repository_update_latency_milliseconds", "Store write latency in milliseconds", nil))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogram("repository_query_latency_milliseconds", "Store read latency in milliseconds", nil))

	m.wsConnections = auto.NewGauge(m.gauge("ws_connections", "Open session websocket connections"))
	m.wsBroadcasts = auto.NewCounterVec(m.counter("ws_broadcasts_total", "Session events broadcast"), []string{"event"})

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counter("errors_by_component_total", "Errors by component"), []string{"component", "error_type"})
	m.errorsByType = auto.NewCounterVec(m.counter("errors_by_type_total", "Errors by type"), []string{"error_type", "severity"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counter("errors_by_endpoint_total", "Errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// active returns the global manager, or nil when recording is disabled.
func active() *Manager {
	if globalManager == nil || !globalManager.enabled {
		return nil
	}
	return globalManager
}

// RecordComparisonProcessed counts an applied comparison and its swing.
func RecordComparisonProcessed(swing float64) {
	if m := active(); m != nil {
		m.comparisonsProcessed.Inc()
		m.eloSwing.Observe(swing)
	}
}

// RecordComparisonDuplicate counts a comparison rejected by id.
func RecordComparisonDuplicate() {
	if m := active(); m != nil {
		m.comparisonsDuplicate.Inc()
	}
}

// RecordComparisonFailed counts a comparison that could not be applied.
func RecordComparisonFailed() {
	if m := active(); m != nil {
		m.comparisonsFailed.Inc()
	}
}

// RecordRankBatch counts an applied ordering of size stories.
func RecordRankBatch(size int) {
	if m := active(); m != nil {
		m.rankBatches.Inc()
		m.rankBatchSize.Observe(float64(size))
	}
}

// RecordSliderUpdates counts story ratings written from slider positions.
func RecordSliderUpdates(n int) {
	if m := active(); m != nil {
		m.sliderUpdates.Add(float64(n))
	}
}

// RecordSessionAggregation counts an applied session consensus.
func RecordSessionAggregation() {
	if m := active(); m != nil {
		m.sessionAggregations.Inc()
	}
}

// RecordStoriesCreated counts newly created stories.
func RecordStoriesCreated(n int) {
	if m := active(); m != nil {
		m.storiesCreated.Add(float64(n))
	}
}

// UpdateStoriesTotal sets the number of stored stories.
func UpdateStoriesTotal(count int) {
	if m := active(); m != nil {
		m.storiesTotal.Set(float64(count))
	}
}

// UpdateQueueSize sets the current queue depth.
func UpdateQueueSize(size int) {
	if m := active(); m != nil {
		m.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if m := active(); m != nil {
		m.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	if m := active(); m != nil {
		m.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue counts an enqueued comparison.
func RecordQueueEnqueue() {
	if m := active(); m != nil {
		m.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue counts a dequeued comparison.
func RecordQueueDequeue() {
	if m := active(); m != nil {
		m.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() {
	if m := active(); m != nil {
		m.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency observes enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	if m := active(); m != nil {
		m.queueProcessingLatency.Observe(latencyMs)
	}
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if m := active(); m != nil {
		m.workerCount.Set(float64(count))
	}
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	if m := active(); m != nil {
		m.workerActiveCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency observes the time to apply one comparison.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if m := active(); m != nil {
		m.workerProcessing.Observe(latencyMs)
	}
}

// RecordWorkerError counts a worker failure.
func RecordWorkerError() {
	if m := active(); m != nil {
		m.workerErrors.Inc()
	}
}

// RecordRepositoryUpdateLatency observes store write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	if m := active(); m != nil {
		m.repositoryUpdateLatency.Observe(latencyMs)
	}
}

// RecordRepositoryQueryLatency observes store read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	if m := active(); m != nil {
		m.repositoryQueryLatency.Observe(latencyMs)
	}
}

// UpdateWSConnections sets the number of open session sockets.
func UpdateWSConnections(count int) {
	if m := active(); m != nil {
		m.wsConnections.Set(float64(count))
	}
}

// RecordWSBroadcast counts a broadcast session event.
func RecordWSBroadcast(event string) {
	if m := active(); m != nil {
		m.wsBroadcasts.WithLabelValues(event).Inc()
	}
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if m := active(); m != nil {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration observes an HTTP request's duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if m := active(); m != nil {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	if m := active(); m != nil {
		m.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByType counts an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	if m := active(); m != nil {
		m.errorsByType.WithLabelValues(errorType, severity).Inc()
	}
}

// RecordErrorByEndpoint counts an error returned by an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if m := active(); m != nil {
		m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	if m := active(); m != nil {
		m.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if m := active(); m != nil {
		m.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime observes a GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	if m := active(); m != nil {
		m.systemGCPauseTime.Observe(pauseMs)
	}
}

// Global returns the process-wide manager.
func Global() *Manager { return globalManager }

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
