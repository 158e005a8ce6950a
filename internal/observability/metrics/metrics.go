package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaseprotect_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leaseprotect_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	policyTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaseprotect_policy_transitions_total",
		Help: "Policy status transitions by event and result",
	}, []string{"event", "result"})

	tokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaseprotect_actor_token_validations_total",
		Help: "Actor token validations by result",
	}, []string{"result"})

	documentUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaseprotect_document_uploads_total",
		Help: "Document uploads by uploader kind and result",
	}, []string{"uploader", "result"})

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leaseprotect_document_upload_bytes",
		Help:    "Size of accepted document uploads",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
	})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaseprotect_notifications_total",
		Help: "Outbound notifications by kind and result",
	}, []string{"kind", "result"})

	notifyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leaseprotect_notification_queue_depth",
		Help: "Notifications waiting for a worker",
	})
)

func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveTransition records a fired (or refused) state machine event.
func ObserveTransition(event, result string) {
	policyTransitions.WithLabelValues(event, result).Inc()
}

func ObserveTokenValidation(result string) {
	tokenValidations.WithLabelValues(result).Inc()
}

func ObserveUpload(uploader, result string, size int64) {
	documentUploads.WithLabelValues(uploader, result).Inc()
	if result == "ok" {
		uploadBytes.Observe(float64(size))
	}
}

func ObserveNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

func SetNotifyQueueDepth(n int) {
	notifyQueueDepth.Set(float64(n))
}
