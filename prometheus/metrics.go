package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Lease ingest counter
	IngestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lease_ingest_total",
			Help: "Total number of lease analysis ingest attempts by outcome",
		},
		[]string{"outcome"}, // outcome can be "ok", "validation_error", "conflict", etc.
	)

	// Benchmark update counter
	BenchmarkUpdateCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lease_benchmark_updates_total",
			Help: "Total number of ZIP benchmark updates by kind",
		},
		[]string{"kind"}, // kind can be "seed", "incremental", "recompute"
	)

	// Per-ZIP lock timeout counter
	LockTimeoutCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lease_benchmark_lock_timeouts_total",
			Help: "Total number of per-ZIP advisory lock timeouts",
		},
	)

	// Access denial counter
	AccessDeniedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lease_access_denied_total",
			Help: "Total number of access policy denials by resource",
		},
		[]string{"resource"},
	)

	// Audit operation counter
	AuditOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lease_audit_operations_total",
			Help: "Total number of extraction audit operations",
		},
		[]string{"operation"}, // operation can be "record", "override", "history", "low_confidence"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lease_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	ErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lease_errors_total",
			Help: "Total number of service errors by kind",
		},
		[]string{"kind"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lease_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lease_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// Benchmark recompute duration
	BenchmarkRecomputeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lease_benchmark_recompute_duration_seconds",
			Help:    "Duration of per-ZIP benchmark recomputes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// Gauge metrics
var (
	// Tracked ZIP codes
	TrackedZipsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lease_tracked_zips",
			Help: "Number of ZIP codes with a benchmark row",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lease_info",
			Help: "Information about the lease data service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(IngestCounter)
	prometheus.MustRegister(BenchmarkUpdateCounter)
	prometheus.MustRegister(LockTimeoutCounter)
	prometheus.MustRegister(AccessDeniedCounter)
	prometheus.MustRegister(AuditOperationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(ErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(BenchmarkRecomputeDuration)

	// Register gauges
	prometheus.MustRegister(TrackedZipsGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "2.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// TrackBenchmarkRecompute measures per-ZIP recompute durations
func TrackBenchmarkRecompute(kind string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		BenchmarkRecomputeDuration.With(prometheus.Labels{
			"kind": kind,
		}).Observe(duration)
	}
}

// RecordIngest records a lease ingest attempt by outcome
func RecordIngest(outcome string) {
	IngestCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordBenchmarkUpdate records a benchmark update by kind
func RecordBenchmarkUpdate(kind string) {
	BenchmarkUpdateCounter.With(prometheus.Labels{"kind": kind}).Inc()
}

// RecordLockTimeout records a per-ZIP advisory lock timeout
func RecordLockTimeout() {
	LockTimeoutCounter.Inc()
}

// RecordAccessDenied records an access policy denial
func RecordAccessDenied(resource string) {
	AccessDeniedCounter.With(prometheus.Labels{"resource": resource}).Inc()
}

// RecordAuditOperation records an extraction audit operation
func RecordAuditOperation(operation string) {
	AuditOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// SetTrackedZips sets the number of ZIP codes with a benchmark row
func SetTrackedZips(n int) {
	TrackedZipsGauge.Set(float64(n))
}

// RecordTrackedZip records a newly seeded ZIP benchmark row
func RecordTrackedZip() {
	TrackedZipsGauge.Inc()
}

// RecordError records a service error by kind
func RecordError(kind string) {
	ErrorCounter.With(prometheus.Labels{"kind": kind}).Inc()
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}
