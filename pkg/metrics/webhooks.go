package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics records per-source outcomes of external event processing.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	ignored   *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "External events fully applied to order state.",
	}, []string{"source"})
	ignored := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_ignored",
		Help: "External events acknowledged without state change (duplicates, unknown references).",
	}, []string{"source"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "External events rejected or failed after authentication.",
	}, []string{"source"})
	reg.MustRegister(processed, ignored, failed)
	return &WebhookMetrics{
		processed: processed,
		ignored:   ignored,
		failed:    failed,
	}
}

// IncProcessed increments the processed counter for the named source.
func (m *WebhookMetrics) IncProcessed(source string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncIgnored increments the ignored counter for the named source.
func (m *WebhookMetrics) IncIgnored(source string) {
	if m == nil || m.ignored == nil {
		return
	}
	m.ignored.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncFailed increments the failed counter for the named source.
func (m *WebhookMetrics) IncFailed(source string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(source)).Inc()
}

func normalizeLabel(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}
