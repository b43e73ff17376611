package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task metrics
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobrunner_tasks_submitted_total",
			Help: "Total number of tasks submitted",
		},
		[]string{"task_type"},
	)

	TasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobrunner_tasks_finished_total",
			Help: "Total number of tasks reaching a terminal status",
		},
		[]string{"task_type", "status"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobrunner_task_duration_seconds",
			Help:    "Wall-clock task execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		},
		[]string{"task_type"},
	)

	// Dispatch metrics
	EntriesReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobrunner_entries_reclaimed_total",
			Help: "Stream entries reclaimed from stalled consumers",
		},
	)

	EntriesRedelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobrunner_entries_noop_total",
			Help: "Stream entries acked without work (terminal or deleted tasks)",
		},
	)

	DispatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobrunner_dispatch_errors_total",
			Help: "Transport-level errors in the dispatch loop",
		},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobrunner_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobrunner_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobrunner_websocket_connections",
			Help: "Number of connected WebSocket clients",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobrunner_websocket_messages_total",
			Help: "Total number of events pushed to WebSocket clients",
		},
		[]string{"event_type"},
	)
)

// RecordTaskSubmission records a task submission.
func RecordTaskSubmission(taskType string) {
	TasksSubmitted.WithLabelValues(taskType).Inc()
}

// RecordTaskFinished records a terminal status with its execution duration.
func RecordTaskFinished(taskType, status string, seconds float64) {
	TasksFinished.WithLabelValues(taskType, status).Inc()
	TaskDuration.WithLabelValues(taskType).Observe(seconds)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// SetWebSocketConnections updates the connected client gauge.
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records an event pushed to a client.
func RecordWebSocketMessage(eventType string) {
	WebSocketMessages.WithLabelValues(eventType).Inc()
}
