package invoices

import (
	"context"
	"strings"
	"testing"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/types"
	"github.com/google/uuid"
)

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		PurchaseID:    "BZR-AB12CD34",
		Status:        enums.OrderStatusDelivered,
		SubtotalCents: 9000,
		ShippingCents: 500,
		TaxCents:      100,
		TotalCents:    9600,
		ShippingAddress: &types.Address{
			Name: "Jordan Reyes", Line1: "1 Market St", City: "Springfield", Country: "US",
		},
		Items: []models.OrderLineItem{
			{ProductName: "ceramic mug", Qty: 2, UnitPriceCents: 2500, TotalCents: 5000},
			{ProductName: "serving tray", Qty: 1, UnitPriceCents: 4000, TotalCents: 4000},
		},
	}
}

func TestRenderOrderIncludesLinesAndTotals(t *testing.T) {
	renderer, err := NewHTMLRenderer()
	if err != nil {
		t.Fatalf("NewHTMLRenderer: %v", err)
	}

	out, err := renderer.RenderOrder(context.Background(), sampleOrder())
	if err != nil {
		t.Fatalf("RenderOrder: %v", err)
	}

	html := string(out)
	for _, want := range []string{
		"BZR-AB12CD34",
		"ceramic mug",
		"serving tray",
		"25.00",
		"90.00",
		"96.00",
		"1 Market St",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("invoice missing %q", want)
		}
	}
}

func TestRenderOrderEscapesProductNames(t *testing.T) {
	renderer, err := NewHTMLRenderer()
	if err != nil {
		t.Fatalf("NewHTMLRenderer: %v", err)
	}

	order := sampleOrder()
	order.Items[0].ProductName = `<script>alert("x")</script>`

	out, err := renderer.RenderOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("RenderOrder: %v", err)
	}
	if strings.Contains(string(out), "<script>") {
		t.Fatal("product name not escaped")
	}
}

func TestRenderOrderValidatesInput(t *testing.T) {
	renderer, err := NewHTMLRenderer()
	if err != nil {
		t.Fatalf("NewHTMLRenderer: %v", err)
	}

	_, err = renderer.RenderOrder(context.Background(), nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for nil order, got %v", err)
	}

	order := sampleOrder()
	order.Items = nil
	_, err = renderer.RenderOrder(context.Background(), order)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty order, got %v", err)
	}
}
