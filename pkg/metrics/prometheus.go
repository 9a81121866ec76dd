package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers.
const (
	OpAddUser     = "add_user"
	OpUpdateScore = "update_score"
	OpGetUser     = "get_user"
	OpList        = "list"
	OpCount       = "count"
	OpTopN        = "top_n"
	OpRank        = "rank"
	OpNeighbors   = "neighbors"

	ResultSuccess = "success"
	ResultFailure = "failure"

	DirectionPublished    = "published"
	DirectionReceived     = "received"
	DirectionIgnored      = "ignored"
	DirectionResubscribed = "resubscribed"
)

// Manager holds every Prometheus collector of the leaderboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Score store
	usersTotal   prometheus.Gauge
	mutations    *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec

	// Rank index
	indexRebuilds        *prometheus.CounterVec
	indexRebuildDuration prometheus.Histogram
	indexLastBuildUnix   prometheus.Gauge
	indexEntries         prometheus.Gauge
	indexVersion         prometheus.Gauge
	indexStale           prometheus.Gauge
	queryLatency         *prometheus.HistogramVec

	// Cross-instance refresh signals
	notifications *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "leaderboard",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.usersTotal = auto.NewGauge(m.gaugeOpts(
		"users_total", "Number of users in the score store"))
	m.mutations = auto.NewCounterVec(m.counterOpts(
		"mutations_total", "Accepted score store mutations by operation"),
		[]string{"op"})
	m.storeLatency = auto.NewHistogramVec(m.histogramOpts(
		"store_latency_milliseconds", "Score store call latency in milliseconds", m.histogramBuckets),
		[]string{"op"})

	m.indexRebuilds = auto.NewCounterVec(m.counterOpts(
		"index_rebuilds_total", "Rank index rebuilds by result"),
		[]string{"result"})
	m.indexRebuildDuration = auto.NewHistogram(m.histogramOpts(
		"index_rebuild_duration_milliseconds", "Rank index rebuild duration in milliseconds", m.histogramBuckets))
	m.indexLastBuildUnix = auto.NewGauge(m.gaugeOpts(
		"index_last_build_unix", "Unix timestamp of the last published rank index"))
	m.indexEntries = auto.NewGauge(m.gaugeOpts(
		"index_entries", "Entries in the published rank index"))
	m.indexVersion = auto.NewGauge(m.gaugeOpts(
		"index_version", "Store version the published rank index reflects"))
	m.indexStale = auto.NewGauge(m.gaugeOpts(
		"index_stale", "1 while the published rank index lags the store"))
	m.queryLatency = auto.NewHistogramVec(m.histogramOpts(
		"query_latency_milliseconds", "Ranking query latency in milliseconds", m.histogramBuckets),
		[]string{"op"})

	m.notifications = auto.NewCounterVec(m.counterOpts(
		"refresh_notifications_total", "Cross-instance refresh notifications by direction"),
		[]string{"direction"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts(
		"http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts(
		"http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts(
		"errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts(
		"errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts(
		"errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts(
		"system_memory_usage_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts(
		"system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordMutation counts an accepted add or score update.
func (m *Manager) RecordMutation(op string) { m.mutations.WithLabelValues(op).Inc() }

// UpdateTotalUsers sets the user count gauge.
func (m *Manager) UpdateTotalUsers(count int) { m.usersTotal.Set(float64(count)) }

// RecordStoreLatency observes one score store call.
func (m *Manager) RecordStoreLatency(op string, latencyMs float64) {
	m.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordIndexRebuild records the outcome and duration of one rebuild.
func (m *Manager) RecordIndexRebuild(result string, durationMs float64) {
	m.indexRebuilds.WithLabelValues(result).Inc()
	m.indexRebuildDuration.Observe(durationMs)
}

// UpdateIndexPublished reflects a freshly published index.
func (m *Manager) UpdateIndexPublished(version uint64, entries int, builtAtUnix int64) {
	m.indexVersion.Set(float64(version))
	m.indexEntries.Set(float64(entries))
	m.indexLastBuildUnix.Set(float64(builtAtUnix))
}

// UpdateIndexStale flags whether the published index lags the store.
func (m *Manager) UpdateIndexStale(stale bool) {
	if stale {
		m.indexStale.Set(1)
		return
	}
	m.indexStale.Set(0)
}

// RecordQueryLatency observes one ranking query.
func (m *Manager) RecordQueryLatency(op string, latencyMs float64) {
	m.queryLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordNotification counts a refresh signal sent or received.
func (m *Manager) RecordNotification(direction string) {
	m.notifications.WithLabelValues(direction).Inc()
}

// Package-level helpers on the global manager.

// RecordMutation counts an accepted add or score update.
func RecordMutation(op string) { globalManager.RecordMutation(op) }

// UpdateTotalUsers sets the user count gauge.
func UpdateTotalUsers(count int) { globalManager.UpdateTotalUsers(count) }

// RecordStoreLatency observes one score store call.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.RecordStoreLatency(op, latencyMs)
}

// RecordIndexRebuild records the outcome and duration of one rebuild.
func RecordIndexRebuild(result string, durationMs float64) {
	globalManager.RecordIndexRebuild(result, durationMs)
}

// UpdateIndexPublished reflects a freshly published index.
func UpdateIndexPublished(version uint64, entries int, builtAtUnix int64) {
	globalManager.UpdateIndexPublished(version, entries, builtAtUnix)
}

// UpdateIndexStale flags whether the published index lags the store.
func UpdateIndexStale(stale bool) { globalManager.UpdateIndexStale(stale) }

// RecordQueryLatency observes one ranking query.
func RecordQueryLatency(op string, latencyMs float64) {
	globalManager.RecordQueryLatency(op, latencyMs)
}

// RecordNotification counts a refresh signal sent or received.
func RecordNotification(direction string) { globalManager.RecordNotification(direction) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
