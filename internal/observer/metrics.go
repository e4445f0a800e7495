package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for standard webhook event metrics
	eventProcessingLabels = []string{"event_type", "owner_id"}
	// Labels for tracking specific processing outcomes
	eventActionLabels = []string{"event_type", "owner_id", "action", "error_type"}

	// Standard Event Counters
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_events_service_events_received_total",
			Help: "Total number of webhook events received.",
		},
		eventProcessingLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_events_service_events_processed_total",
			Help: "Total number of webhook events successfully processed and acknowledged.",
		},
		eventProcessingLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_events_service_events_failed_total",
			Help: "Total number of webhook events that failed processing (resulting in an error response).",
		},
		eventProcessingLabels,
	)

	// Histogram for Processing Duration
	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_events_service_event_processing_duration_seconds",
			Help:    "Histogram of webhook event processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		eventProcessingLabels,
	)

	// Counter for Specific Actions
	EventProcessingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_events_service_event_processing_actions_total",
			Help: "Total count of specific actions taken after event processing, labeled by error type.",
		},
		eventActionLabels,
	)

	// Global metrics instance
	Metrics *metricsStore
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "owner_id", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_events_service_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)

	callUpdateConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_events_service_call_update_conflicts_total",
			Help: "Total number of optimistic-concurrency conflicts detected while updating call rows.",
		},
		[]string{"owner_id"},
	)
)

// Post-call worker pool metrics
var (
	postCallLabels       = []string{"owner_id"}
	postCallStatusLabels = []string{"owner_id", "status"}

	postCallTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postcall_tasks_submitted_total",
			Help: "Total number of post-call tasks submitted to the worker pool.",
		},
		postCallLabels,
	)
	postCallTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postcall_tasks_processed_total",
			Help: "Total number of post-call tasks processed by the worker pool, labeled by final status.",
		},
		postCallStatusLabels,
	)
	postCallProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postcall_processing_duration_seconds",
			Help:    "Histogram of processing durations for post-call tasks.",
			Buckets: prometheus.DefBuckets,
		},
		postCallLabels,
	)
	postCallQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "postcall_queue_length",
		Help: "Approximate number of tasks waiting in the post-call worker pool queue.",
	})
)

// Summarization and lead metrics
var (
	summarizationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summarization_requests_total",
			Help: "Total number of summarization requests, labeled by status.",
		},
		postCallStatusLabels,
	)
	summarizationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "summarization_duration_seconds",
			Help:    "Histogram of summarization request durations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		postCallLabels,
	)
	leadsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_created_total",
			Help: "Total number of leads created from completed calls.",
		},
		postCallLabels,
	)
)

// metricsStore holds references to all Prometheus metrics.
type metricsStore struct{}

// InitMetrics initializes the Prometheus metrics if enabled.
// Call this function during application startup.
func InitMetrics(enabled bool) {
	if !enabled {
		metricsEnabled = false
		return
	}

	metricsEnabled = true

	// Metrics are auto-registered via promauto; the store exists for the
	// nil-check helpers below.
	Metrics = &metricsStore{}
}

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType, owner string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(eventType, sanitizeOwner(owner)).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType, owner string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(eventType, sanitizeOwner(owner)).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType, owner string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(eventType, sanitizeOwner(owner)).Inc()
}

// sanitizeOwner ensures the owner label is valid or returns a default value.
func sanitizeOwner(owner string) string {
	if owner == "" {
		return "unknown"
	}
	return owner
}

// ObserveEventProcessingDuration records the processing time for a specific event.
func ObserveEventProcessingDuration(eventType, owner string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventProcessingDurationSeconds.WithLabelValues(eventType, sanitizeOwner(owner)).Observe(duration.Seconds())
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity, owner string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, sanitizeOwner(owner), status).Observe(duration.Seconds())
}

// IncCallUpdateConflict increments the optimistic-concurrency conflict counter.
func IncCallUpdateConflict(owner string) {
	if !metricsEnabled {
		return
	}
	callUpdateConflictsTotal.WithLabelValues(sanitizeOwner(owner)).Inc()
}

// IncEventProcessingAction increments the counter for a specific processing outcome.
func IncEventProcessingAction(eventType, owner, action, errorType string) {
	if !metricsEnabled {
		return
	}
	EventProcessingActionsTotal.WithLabelValues(eventType, sanitizeOwner(owner), action, SanitizeErrorType(errorType)).Inc()
}

// SanitizeErrorType maps specific errors or provides a default category.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "missing field"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "conflict"):
		return "conflict"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}

// --- Post-call Worker Metric Helpers ---

// IncPostCallTasksSubmitted increments the counter for submitted post-call tasks.
func IncPostCallTasksSubmitted(owner string) {
	if Metrics != nil {
		postCallTasksSubmittedTotal.WithLabelValues(sanitizeOwner(owner)).Inc()
	}
}

// IncPostCallTasksProcessed increments the counter for processed post-call tasks by status.
func IncPostCallTasksProcessed(owner, status string) {
	if Metrics != nil {
		postCallTasksProcessedTotal.WithLabelValues(sanitizeOwner(owner), status).Inc()
	}
}

// ObservePostCallProcessingDuration records the processing time for a post-call task.
func ObservePostCallProcessingDuration(owner string, duration time.Duration) {
	if Metrics != nil {
		postCallProcessingDurationSeconds.WithLabelValues(sanitizeOwner(owner)).Observe(duration.Seconds())
	}
}

// SetPostCallQueueLength sets the current post-call queue length.
func SetPostCallQueueLength(length int) {
	if Metrics != nil {
		postCallQueueLength.Set(float64(length))
	}
}

// --- Summarization and Lead Metric Helpers ---

// IncSummarizationRequest increments the summarization request counter by status.
func IncSummarizationRequest(owner, status string) {
	if Metrics != nil {
		summarizationRequestsTotal.WithLabelValues(sanitizeOwner(owner), status).Inc()
	}
}

// ObserveSummarizationDuration records the duration of a summarization request.
func ObserveSummarizationDuration(owner string, duration time.Duration) {
	if Metrics != nil {
		summarizationDurationSeconds.WithLabelValues(sanitizeOwner(owner)).Observe(duration.Seconds())
	}
}

// IncLeadsCreated increments the leads created counter.
func IncLeadsCreated(owner string) {
	if Metrics != nil {
		leadsCreatedTotal.WithLabelValues(sanitizeOwner(owner)).Inc()
	}
}
