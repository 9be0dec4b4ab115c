package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazaarlabs/bazaar-backend/api/middleware"
	checkoutsvc "github.com/bazaarlabs/bazaar-backend/internal/checkout"
	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
)

type testCheckoutService struct {
	createFn func(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error)
	resendFn func(ctx context.Context, orderID uuid.UUID) (*checkoutsvc.Result, error)
}

func (s *testCheckoutService) Create(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return nil, nil
}

func (s *testCheckoutService) ResendSession(ctx context.Context, orderID uuid.UUID) (*checkoutsvc.Result, error) {
	if s.resendFn != nil {
		return s.resendFn(ctx, orderID)
	}
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestCheckoutSuccess(t *testing.T) {
	customerID := uuid.New()
	var captured checkoutsvc.Input
	svc := &testCheckoutService{
		createFn: func(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
			captured = input
			return &checkoutsvc.Result{
				Order:      &models.Order{ID: uuid.New(), CustomerID: input.CustomerID},
				SessionID:  "cs_test",
				SessionURL: "https://pay.example/cs_test",
			}, nil
		},
	}

	body := `{"items":[{"vendor_id":"` + uuid.NewString() + `","product_name":"Clay Teapot","qty":2,"unit_price_cents":4500}],"shipping_cents":500,"tax_cents":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), customerID.String()))

	resp := httptest.NewRecorder()
	Checkout(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.CustomerID != customerID {
		t.Fatalf("expected customer from context, got %s", captured.CustomerID)
	}
	if len(captured.Items) != 1 || captured.Items[0].Qty != 2 {
		t.Fatalf("unexpected items: %+v", captured.Items)
	}

	var envelope struct {
		Data checkoutsvc.Result `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.SessionURL != "https://pay.example/cs_test" {
		t.Fatalf("missing session url in response: %s", resp.Body.String())
	}
}

func TestCheckoutRequiresAuthentication(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	Checkout(&testCheckoutService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestCheckoutRejectsEmptyItems(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"items":[]}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()

	called := false
	svc := &testCheckoutService{
		createFn: func(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
			called = true
			return nil, nil
		},
	}
	Checkout(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
	if called {
		t.Fatal("service should not run on invalid payload")
	}
}

func TestResendCheckoutSessionOwnerOnly(t *testing.T) {
	owner := uuid.New()
	orderID := uuid.New()
	ledger := &testLedger{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: id, CustomerID: owner}, nil
		},
	}
	svc := &testCheckoutService{
		resendFn: func(ctx context.Context, id uuid.UUID) (*checkoutsvc.Result, error) {
			return &checkoutsvc.Result{SessionID: "cs_new"}, nil
		},
	}

	req := newAuthedRequest(http.MethodPost, "/api/v1/checkout/"+orderID.String()+"/session", owner.String(), map[string]string{"orderID": orderID.String()})
	resp := httptest.NewRecorder()
	ResendCheckoutSession(svc, ledger, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("owner resend should succeed, got %d: %s", resp.Code, resp.Body.String())
	}

	stranger := uuid.New()
	req = newAuthedRequest(http.MethodPost, "/api/v1/checkout/"+orderID.String()+"/session", stranger.String(), map[string]string{"orderID": orderID.String()})
	resp = httptest.NewRecorder()
	ResendCheckoutSession(svc, ledger, testLogger())(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("stranger resend should be forbidden, got %d", resp.Code)
	}
}

func newAuthedRequest(method, target, userID string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	if len(params) > 0 {
		req = withRouteParams(req, params)
	}
	return req
}

func withRouteParams(req *http.Request, params map[string]string) *http.Request {
	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
