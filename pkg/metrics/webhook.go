package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records outcomes of provider event handling.
type WebhookMetrics struct {
	duration    *prometheus.HistogramVec
	processed   *prometheus.CounterVec
	failed      *prometheus.CounterVec
	unsupported prometheus.Counter
	duplicate   prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Duration of webhook event handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Successfully reconciled webhook events.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "Webhook events that ended in a handler failure.",
	}, []string{"event_type"})
	unsupported := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_unsupported",
		Help: "Webhook events outside the handled allow-list.",
	})
	duplicate := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook events suppressed by the idempotency guard.",
	})
	reg.MustRegister(duration, processed, failed, unsupported, duplicate)
	return &WebhookMetrics{
		duration:    duration,
		processed:   processed,
		failed:      failed,
		unsupported: unsupported,
		duplicate:   duplicate,
	}
}

// ObserveDuration records how long handling took for the event type.
func (m *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncProcessed increments the success counter for the event type.
func (m *WebhookMetrics) IncProcessed(eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (m *WebhookMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncUnsupported counts a delivery outside the allow-list.
func (m *WebhookMetrics) IncUnsupported() {
	if m == nil || m.unsupported == nil {
		return
	}
	m.unsupported.Inc()
}

// IncDuplicate counts a delivery suppressed by the idempotency guard.
func (m *WebhookMetrics) IncDuplicate() {
	if m == nil || m.duplicate == nil {
		return
	}
	m.duplicate.Inc()
}

func normalizeLabel(eventType string) string {
	if eventType == "" {
		return "unknown"
	}
	return eventType
}
