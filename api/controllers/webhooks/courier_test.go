package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bazaarlabs/bazaar-backend/internal/shipping"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/metrics"
)

const courierTestKey = "courier-secret"

func TestCourierWebhook_Processed(t *testing.T) {
	service := &fakeCourierService{outcome: shipping.OutcomeProcessed}
	registry := prometheus.NewRegistry()
	wm := metrics.NewWebhookMetrics(registry)
	handler := CourierWebhook(service, courierTestKey, wm, nil)

	body := `{"event_id":"evt-1","reference_no":"CON-9","status":"Delivered"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(body))
	req.Header.Set("X-Api-Key", courierTestKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected processor called once, got %d", service.calls)
	}
	if service.last.ConsignmentRef != "CON-9" || service.last.Status != "Delivered" {
		t.Fatalf("unexpected decoded event: %+v", service.last)
	}
	if got := counterValue(t, registry, "webhook_events_processed", "courier"); got != 1 {
		t.Fatalf("expected processed counter 1, got %v", got)
	}
}

func TestCourierWebhook_DecodesCourierFieldNames(t *testing.T) {
	service := &fakeCourierService{outcome: shipping.OutcomeProcessed}
	handler := CourierWebhook(service, courierTestKey, nil, nil)

	body := `{
		"reference_no": "CON-42",
		"status": "Delivered",
		"desc": "Handed to customer",
		"event_date_time": "2026-04-02T10:30:00Z",
		"hub_name": "Dhaka Hub",
		"rider_name": "R. Ahmed",
		"rider_code": "RD-17",
		"failure_reason": "",
		"pod_image": "https://cdn.courier.test/pod/42.jpg"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(body))
	req.Header.Set("X-Api-Key", courierTestKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected processor called once, got %d", service.calls)
	}
	got := service.last
	if got.ConsignmentRef != "CON-42" || got.Description != "Handed to customer" {
		t.Fatalf("reference or description not decoded: %+v", got)
	}
	if got.HubName != "Dhaka Hub" || got.RiderName != "R. Ahmed" || got.RiderCode != "RD-17" {
		t.Fatalf("rider fields not decoded: %+v", got)
	}
	if got.PODImageURL != "https://cdn.courier.test/pod/42.jpg" {
		t.Fatalf("pod image not decoded: %+v", got)
	}
	if got.OccurredAt == nil || !got.OccurredAt.Equal(time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("event timestamp not decoded: %+v", got.OccurredAt)
	}
}

func TestCourierWebhook_RejectsBadAPIKey(t *testing.T) {
	service := &fakeCourierService{outcome: shipping.OutcomeProcessed}
	handler := CourierWebhook(service, courierTestKey, nil, nil)

	for _, key := range []string{"", "wrong-key"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(`{}`))
		if key != "" {
			req.Header.Set("X-Api-Key", key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("key %q: expected 403, got %d", key, rec.Code)
		}
	}
	if service.calls != 0 {
		t.Fatalf("processor should not run without a valid key")
	}
}

func TestCourierWebhook_MalformedBodyAcknowledged(t *testing.T) {
	service := &fakeCourierService{outcome: shipping.OutcomeProcessed}
	registry := prometheus.NewRegistry()
	wm := metrics.NewWebhookMetrics(registry)
	handler := CourierWebhook(service, courierTestKey, wm, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader("not json"))
	req.Header.Set("X-Api-Key", courierTestKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for malformed body, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("processor should not see malformed payloads")
	}
	if got := counterValue(t, registry, "webhook_events_failed", "courier"); got != 1 {
		t.Fatalf("expected failed counter 1, got %v", got)
	}
}

func TestCourierWebhook_ProcessingFailureStillAcknowledged(t *testing.T) {
	service := &fakeCourierService{
		outcome: shipping.OutcomeFailed,
		err:     pkgerrors.New(pkgerrors.CodeInternal, "consignment spans orders"),
	}
	registry := prometheus.NewRegistry()
	wm := metrics.NewWebhookMetrics(registry)
	handler := CourierWebhook(service, courierTestKey, wm, nil)

	body := `{"event_id":"evt-2","reference_no":"CON-9","status":"Delivered"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(body))
	req.Header.Set("X-Api-Key", courierTestKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("processing failures must be acknowledged, got %d", rec.Code)
	}
	if got := counterValue(t, registry, "webhook_events_failed", "courier"); got != 1 {
		t.Fatalf("expected failed counter 1, got %v", got)
	}
}

func TestCourierWebhook_MissingConfiguredKey(t *testing.T) {
	handler := CourierWebhook(&fakeCourierService{}, "", nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when no key is configured, got %d", rec.Code)
	}
}

type fakeCourierService struct {
	calls   int
	last    shipping.Event
	outcome shipping.Outcome
	err     error
}

func (f *fakeCourierService) HandleEvent(ctx context.Context, event shipping.Event) (shipping.Outcome, error) {
	f.calls++
	f.last = event
	return f.outcome, f.err
}
