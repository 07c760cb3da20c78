package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request latency (seconds)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gmail2s3_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
		},
		[]string{"method", "path", "status"},
	)

	// status: success, failed
	MessagesSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gmail2s3_messages_synced_total",
			Help: "Total number of messages synced to S3",
		},
		[]string{"status"},
	)

	MessagesForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gmail2s3_messages_forwarded_total",
			Help: "Total number of messages forwarded",
		},
		[]string{"mode", "status"}, // mode: raw, compose
	)

	S3Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gmail2s3_s3_uploads_total",
			Help: "Total number of objects uploaded to S3",
		},
		[]string{"kind", "status"}, // kind: attachment, message
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gmail2s3_webhook_deliveries_total",
			Help: "Total number of webhook deliveries",
		},
		[]string{"event", "status"},
	)

	WebhookLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gmail2s3_webhook_latency_ms",
			Help:    "Webhook delivery latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"event"},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementMessagesSynced(status string) {
	MessagesSynced.WithLabelValues(status).Inc()
}

func IncrementMessagesForwarded(mode, status string) {
	MessagesForwarded.WithLabelValues(mode, status).Inc()
}

func IncrementS3Uploads(kind, status string) {
	S3Uploads.WithLabelValues(kind, status).Inc()
}

// RecordWebhookDelivery counts one delivery and its latency.
func RecordWebhookDelivery(event, status string, duration time.Duration) {
	WebhookDeliveries.WithLabelValues(event, status).Inc()
	WebhookLatency.WithLabelValues(event).Observe(float64(duration.Milliseconds()))
}

// Status maps an error to the status label used above.
func Status(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
