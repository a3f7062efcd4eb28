package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	chatMessagesTotal     *prometheus.CounterVec
	mediaUploadsTotal     *prometheus.CounterVec
	presenceUpdatesTotal  *prometheus.CounterVec
	realtimeSubscriptions prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onquest_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onquest_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onquest_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onquest_chat_messages_total",
			Help: "Total number of chat messages written, by message type.",
		}, []string{"type"})

		mediaUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onquest_media_uploads_total",
			Help: "Total number of media upload batches, by outcome.",
		}, []string{"result"})

		presenceUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onquest_presence_updates_total",
			Help: "Total number of presence propagations, by state.",
		}, []string{"state"})

		realtimeSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "onquest_realtime_subscriptions",
			Help: "Number of live snapshot subscriptions on this node.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			chatMessagesTotal,
			mediaUploadsTotal,
			presenceUpdatesTotal,
			realtimeSubscriptions,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ChatMessagesSent exposes the counter of written chat messages.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// MediaUploads exposes the counter of media upload batches.
func MediaUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return mediaUploadsTotal
}

// PresenceUpdates exposes the counter of presence propagations.
func PresenceUpdates() *prometheus.CounterVec {
	RegisterMetrics()
	return presenceUpdatesTotal
}

// RealtimeSubscriptions exposes the gauge of live subscriptions.
func RealtimeSubscriptions() prometheus.Gauge {
	RegisterMetrics()
	return realtimeSubscriptions
}

// MetricsHandler serves the default registry on the Fiber app.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
