package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWebhookMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)

	m.IncProcessed("payment")
	m.IncProcessed("payment")
	m.IncIgnored("courier")
	m.IncFailed("")

	if got := testutil.ToFloat64(m.processed.WithLabelValues("payment")); got != 2 {
		t.Fatalf("processed counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ignored.WithLabelValues("courier")); got != 1 {
		t.Fatalf("ignored counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.failed.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("failed counter should normalize empty source, got %v", got)
	}
}

func TestWebhookMetricsNilSafe(t *testing.T) {
	var m *WebhookMetrics
	m.IncProcessed("payment")
	m.IncIgnored("payment")
	m.IncFailed("payment")

	empty := NewWebhookMetrics(nil)
	empty.IncProcessed("payment")
}
