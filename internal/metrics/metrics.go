package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the application metrics
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Record conversion metrics (direction: to_quickmarc | to_parsed)
	ConversionTotal    *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec

	// Storage operation metrics
	StorageOperationTotal    *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Event publishing metrics
	EventPublishTotal    *prometheus.CounterVec
	EventPublishDuration *prometheus.HistogramVec

	// Schema validation metrics
	SchemaValidationTotal    *prometheus.CounterVec
	SchemaValidationDuration *prometheus.HistogramVec

	// MARC export uploads
	ExportTotal *prometheus.CounterVec

	// Parsed record read cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics creates a new Metrics instance with all required metrics
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	// Return existing instance if already created
	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		ConversionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qm_conversions_total",
			Help: "Total number of record conversions",
		}, []string{"direction", "format", "status"}),

		ConversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qm_conversion_duration_seconds",
			Help:    "Record conversion duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"direction", "format", "status"}),

		StorageOperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage operations",
		}, []string{"operation", "status"}),

		StorageOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_publish_total",
			Help: "Total number of event publish operations",
		}, []string{"event_type", "status"}),

		EventPublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "event_publish_duration_seconds",
			Help:    "Event publish duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type", "status"}),

		SchemaValidationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schema_validation_total",
			Help: "Total number of schema validation operations",
		}, []string{"schema", "status"}),

		SchemaValidationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schema_validation_duration_seconds",
			Help:    "Schema validation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"schema", "status"}),

		ExportTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qm_exports_total",
			Help: "Total number of MARC export uploads",
		}, []string{"status"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qm_record_cache_hits_total",
			Help: "Parsed record cache hits",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qm_record_cache_misses_total",
			Help: "Parsed record cache misses",
		}),
	}

	// Register metrics with the default registry
	registerMetrics(m)

	// Store as global instance
	globalMetrics = m

	return m
}

// ObserveConversion records one conversion outcome.
func (m *Metrics) ObserveConversion(direction, format string, start time.Time, err error) {
	s := status(err)
	m.ConversionTotal.WithLabelValues(direction, format, s).Inc()
	m.ConversionDuration.WithLabelValues(direction, format, s).Observe(time.Since(start).Seconds())
}

// ObserveStorage records one storage operation outcome.
func (m *Metrics) ObserveStorage(operation string, start time.Time, err error) {
	s := status(err)
	m.StorageOperationTotal.WithLabelValues(operation, s).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, s).Observe(time.Since(start).Seconds())
}

// ObserveEvent records one event publish outcome.
func (m *Metrics) ObserveEvent(eventType string, start time.Time, err error) {
	s := status(err)
	m.EventPublishTotal.WithLabelValues(eventType, s).Inc()
	m.EventPublishDuration.WithLabelValues(eventType, s).Observe(time.Since(start).Seconds())
}

// ObserveValidation records one schema validation outcome.
func (m *Metrics) ObserveValidation(schema string, start time.Time, err error) {
	s := status(err)
	m.SchemaValidationTotal.WithLabelValues(schema, s).Inc()
	m.SchemaValidationDuration.WithLabelValues(schema, s).Observe(time.Since(start).Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// registerMetrics registers all metrics with the default registry
func registerMetrics(m *Metrics) {
	// Try to register each metric, ignore if already registered
	registerOrGet(m.HTTPRequestTotal)
	registerOrGet(m.HTTPRequestDuration)
	registerOrGet(m.ConversionTotal)
	registerOrGet(m.ConversionDuration)
	registerOrGet(m.StorageOperationTotal)
	registerOrGet(m.StorageOperationDuration)
	registerOrGet(m.EventPublishTotal)
	registerOrGet(m.EventPublishDuration)
	registerOrGet(m.SchemaValidationTotal)
	registerOrGet(m.SchemaValidationDuration)
	registerOrGet(m.ExportTotal)
	registerOrGet(m.CacheHits)
	registerOrGet(m.CacheMisses)
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		// If already registered, return the existing collector
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}
