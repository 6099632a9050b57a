// Package metrics provides Prometheus metrics for the call transcript generator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector of the generator.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Request layer
	requests           *prometheus.CounterVec
	requestRetries     prometheus.Counter
	requestLatency     prometheus.Histogram
	rateLimitInterval  prometheus.Gauge
	rateLimitWait      prometheus.Histogram
	rateLimitPenalties prometheus.Counter

	// Conversations
	conversations       *prometheus.CounterVec
	conversationTurns   prometheus.Histogram
	conversationSeconds prometheus.Histogram
	fallbackTurns       *prometheus.CounterVec
	arbiterVerdicts     *prometheus.CounterVec

	// Batch
	tasksPlanned   prometheus.Gauge
	tasksCompleted *prometheus.CounterVec
	taskFailures   prometheus.Counter
	tasksSkipped   prometheus.Counter

	// Queue and workers
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueueTotal prometheus.Counter
	queueDequeueTotal prometheus.Counter
	workerActiveCount prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "callgen",
		subsystem:        "generator",
		histogramBuckets: []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 90000},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.requests = m.counterVec("requests_total", "Remote generation calls by outcome", "outcome")
	m.requestRetries = m.counter("request_retries_total", "Retried remote generation attempts")
	m.requestLatency = m.histogram("request_latency_milliseconds", "Latency of single remote generation attempts", m.histogramBuckets)
	m.rateLimitInterval = m.gauge("rate_limit_interval_milliseconds", "Current minimum spacing between remote calls")
	m.rateLimitWait = m.histogram("rate_limit_wait_milliseconds", "Time spent waiting for a rate limiter slot", m.histogramBuckets)
	m.rateLimitPenalties = m.counter("rate_limit_penalties_total", "Times the shared interval was widened after a 429")

	m.conversations = m.counterVec("conversations_total", "Finished conversations by terminator", "terminator")
	m.conversationTurns = m.histogram("conversation_turns", "Turns per finished conversation", []float64{2, 4, 6, 8, 10, 15, 20, 25, 30, 40})
	m.conversationSeconds = m.histogram("conversation_duration_seconds", "Wall time per conversation", []float64{10, 30, 60, 120, 300, 600, 1200})
	m.fallbackTurns = m.counterVec("fallback_turns_total", "Turns replaced by a fallback utterance", "speaker")
	m.arbiterVerdicts = m.counterVec("arbiter_verdicts_total", "Arbiter verdicts by parse source and decision", "source", "decision")

	m.tasksPlanned = m.gauge("tasks_planned", "Tasks planned for the current batch")
	m.tasksCompleted = m.counterVec("tasks_completed_total", "Tasks that produced a record", "label")
	m.taskFailures = m.counter("task_failures_total", "Tasks that failed without a record")
	m.tasksSkipped = m.counter("tasks_skipped_total", "Tasks skipped because a record already exists")

	m.queueSize = m.gauge("queue_size", "Current number of queued tasks")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueueTotal = m.counter("queue_enqueue_total", "Tasks enqueued")
	m.queueDequeueTotal = m.counter("queue_dequeue_total", "Tasks dequeued")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently running a conversation")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", Buckets: prometheus.DefBuckets, ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func on() bool { return globalManager.enabled }

// Request layer.

// RecordRequest counts one finished remote call by outcome.
func RecordRequest(outcome string) {
	if on() {
		globalManager.requests.WithLabelValues(outcome).Inc()
	}
}

// RecordRequestRetry counts one retried attempt.
func RecordRequestRetry() {
	if on() {
		globalManager.requestRetries.Inc()
	}
}

// RecordRequestLatency records one attempt's latency in milliseconds.
func RecordRequestLatency(latencyMs float64) {
	if on() {
		globalManager.requestLatency.Observe(latencyMs)
	}
}

// UpdateRateLimitInterval sets the current limiter interval in milliseconds.
func UpdateRateLimitInterval(ms float64) {
	if on() {
		globalManager.rateLimitInterval.Set(ms)
	}
}

// RecordRateLimitWait records time spent waiting for a slot.
func RecordRateLimitWait(ms float64) {
	if on() {
		globalManager.rateLimitWait.Observe(ms)
	}
}

// RecordRateLimitPenalty counts an interval widening.
func RecordRateLimitPenalty() {
	if on() {
		globalManager.rateLimitPenalties.Inc()
	}
}

// Conversations.

// RecordConversation records a finished conversation.
func RecordConversation(terminator string, turns int, seconds float64) {
	if !on() {
		return
	}
	globalManager.conversations.WithLabelValues(terminator).Inc()
	globalManager.conversationTurns.Observe(float64(turns))
	globalManager.conversationSeconds.Observe(seconds)
}

// RecordFallbackTurn counts a fallback utterance for speaker.
func RecordFallbackTurn(speaker string) {
	if on() {
		globalManager.fallbackTurns.WithLabelValues(speaker).Inc()
	}
}

// RecordArbiterVerdict counts a verdict by parse source.
func RecordArbiterVerdict(source string, terminate bool) {
	if !on() {
		return
	}
	decision := "continue"
	if terminate {
		decision = "terminate"
	}
	globalManager.arbiterVerdicts.WithLabelValues(source, decision).Inc()
}

// Batch.

// UpdateTasksPlanned sets the planned task count.
func UpdateTasksPlanned(n int) {
	if on() {
		globalManager.tasksPlanned.Set(float64(n))
	}
}

// RecordTaskCompleted counts a saved record.
func RecordTaskCompleted(label string) {
	if on() {
		globalManager.tasksCompleted.WithLabelValues(label).Inc()
	}
}

// RecordTaskFailure counts a failed task.
func RecordTaskFailure() {
	if on() {
		globalManager.taskFailures.Inc()
	}
}

// RecordTaskSkipped counts a task skipped on resume.
func RecordTaskSkipped() {
	if on() {
		globalManager.tasksSkipped.Inc()
	}
}

// Queue and workers.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueueTotal.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeueTotal.Inc()
	}
}

// AddWorkerActive adjusts the active worker gauge by delta.
func AddWorkerActive(delta int) {
	if on() {
		globalManager.workerActiveCount.Add(float64(delta))
	}
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if on() {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
