package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetadmin_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assetadmin_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetadmin_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// Listing metrics
	ListingResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetadmin_listing_results",
			Help:    "Number of records returned by a composed listing before pagination",
			Buckets: []float64{0, 1, 5, 15, 50, 100, 500, 1000, 5000},
		},
	)

	// Folder and file metrics
	FoldersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetadmin_folders_created_total",
			Help: "Total number of folders created",
		},
	)

	NameCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetadmin_name_collisions_total",
			Help: "Total number of name candidates rejected because the filename was taken",
		},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetadmin_uploads_total",
			Help: "Total number of upload attempts",
		},
		[]string{"status"},
	)

	BatchDeleteItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetadmin_batch_delete_items_total",
			Help: "Per-item outcomes of batch delete requests",
		},
		[]string{"outcome"},
	)

	PermissionDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetadmin_permission_denied_total",
			Help: "Total number of operations rejected by a capability check",
		},
		[]string{"operation"},
	)

	// Authentication metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetadmin_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := httpStatusToString(status)
	HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// httpStatusToString buckets an HTTP status code into its class
func httpStatusToString(code int) string {
	if code >= 200 && code < 300 {
		return "2xx"
	} else if code >= 300 && code < 400 {
		return "3xx"
	} else if code >= 400 && code < 500 {
		return "4xx"
	} else if code >= 500 {
		return "5xx"
	}
	return "unknown"
}

// RecordUpload increments the upload counter
func RecordUpload(success bool) {
	UploadsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordLogin increments login attempt counter
func RecordLogin(success bool) {
	LoginAttempts.WithLabelValues(outcome(success)).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
