package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	httpErrorsTotal          *prometheus.CounterVec
	scansTotal               *prometheus.CounterVec
	mealScansTotal           *prometheus.CounterVec
	justificationTransitions *prometheus.CounterVec
	documentRejectedTotal    *prometheus.CounterVec
	notificationsPublished   *prometheus.CounterVec
	sseClientsActive         prometheus.Gauge
	liveFeedClientsActive    prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the attendance engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "presence_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		scansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_scans_total",
			Help: "Attendance scans by actor kind and resulting action.",
		}, []string{"kind", "action"})

		mealScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_meal_scans_total",
			Help: "Meal scans by meal type and outcome.",
		}, []string{"meal_type", "outcome"})

		justificationTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_justification_transitions_total",
			Help: "Successful justification workflow transitions by target status.",
		}, []string{"status"})

		documentRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_documents_rejected_total",
			Help: "Justification documents rejected at the boundary.",
		}, []string{"reason"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_notifications_published_total",
			Help: "Notifications delivered to actors by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_sse_clients_active",
			Help: "Open notification streams.",
		})

		liveFeedClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_live_feed_clients_active",
			Help: "Scanning stations connected to the live scan feed.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			scansTotal,
			mealScansTotal,
			justificationTransitions,
			documentRejectedTotal,
			notificationsPublished,
			sseClientsActive,
			liveFeedClientsActive,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Scans exposes the attendance scan counter.
func Scans() *prometheus.CounterVec {
	RegisterMetrics()
	return scansTotal
}

// MealScans exposes the meal scan counter.
func MealScans() *prometheus.CounterVec {
	RegisterMetrics()
	return mealScansTotal
}

// JustificationTransitions exposes the workflow transition counter.
func JustificationTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return justificationTransitions
}

// DocumentRejected exposes the rejected document counter.
func DocumentRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return documentRejectedTotal
}

// NotificationsPublished exposes the notification counter.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// SSEClientsActive exposes the open notification stream gauge.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// LiveFeedClientsActive exposes the live scan feed gauge.
func LiveFeedClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return liveFeedClientsActive
}
