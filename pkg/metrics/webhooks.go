package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics tracks inbound webhook deliveries per source.
type WebhookMetrics struct {
	received *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhooks",
		Name:      "received_total",
		Help:      "Inbound webhook deliveries by source and outcome.",
	}, []string{"source", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "webhooks",
		Name:      "handle_duration_seconds",
		Help:      "Time spent handling a webhook delivery.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})
	reg.MustRegister(received, duration)
	return &WebhookMetrics{received: received, duration: duration}
}

// Observe records one delivery with its outcome (processed, duplicate, ignored, rejected, failed).
func (m *WebhookMetrics) Observe(source, outcome string, elapsed time.Duration) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(normalizeLabel(source)).Observe(elapsed.Seconds())
}
