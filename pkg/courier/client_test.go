package courier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bazaarlabs/bazaar-backend/pkg/config"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
)

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	client, err := NewClient(config.CourierConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     maxRetries,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCreateShipmentSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req CreateShipmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ShipmentResult{Success: true, ConsignmentRef: "CN-001"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	result, err := client.CreateShipment(context.Background(), CreateShipmentRequest{
		OrderID:  "ord-1",
		VendorID: "ven-1",
		Items:    []ShipmentItem{{LineItemID: "li-1", ProductName: "widget", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("CreateShipment: %v", err)
	}
	if result.ConsignmentRef != "CN-001" {
		t.Fatalf("unexpected ref %s", result.ConsignmentRef)
	}
}

func TestCreateShipmentRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(ShipmentResult{Success: true, ConsignmentRef: "CN-002"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	result, err := client.CreateShipment(context.Background(), CreateShipmentRequest{
		OrderID: "ord-1",
		Items:   []ShipmentItem{{LineItemID: "li-1", ProductName: "widget", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("CreateShipment after retries: %v", err)
	}
	if result.ConsignmentRef != "CN-002" {
		t.Fatalf("unexpected ref %s", result.ConsignmentRef)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestCreateShipmentFailsFastOn4xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	_, err := client.CreateShipment(context.Background(), CreateShipmentRequest{
		OrderID: "ord-1",
		Items:   []ShipmentItem{{LineItemID: "li-1", ProductName: "widget", Qty: 1}},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx should not be retried, got %d attempts", calls.Load())
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateShipmentRejectedByCarrier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ShipmentResult{Success: false, Message: "no coverage"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	_, err := client.CreateShipment(context.Background(), CreateShipmentRequest{
		OrderID: "ord-1",
		Items:   []ShipmentItem{{LineItemID: "li-1", ProductName: "widget", Qty: 1}},
	})
	if err == nil {
		t.Fatal("expected an error for unsuccessful shipment")
	}
}

func TestCancelShipmentValidation(t *testing.T) {
	client := newTestClient(t, "http://localhost:9", 0)
	if err := client.CancelShipment(context.Background(), " "); err == nil {
		t.Fatal("empty reference must be rejected")
	}
}
