package invoices

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Renderer produces customer-facing invoice documents for orders.
type Renderer interface {
	RenderOrder(ctx context.Context, order *models.Order) ([]byte, error)
}

type htmlRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer builds the default HTML invoice renderer.
func NewHTMLRenderer() (Renderer, error) {
	tmpl, err := template.New("invoice").Parse(invoiceTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	return &htmlRenderer{tmpl: tmpl}, nil
}

type invoiceLine struct {
	ProductName string
	Qty         int
	UnitPrice   string
	Total       string
}

type invoiceData struct {
	PurchaseID string
	IssuedAt   string
	BillTo     string
	ShipTo     string
	Lines      []invoiceLine
	Subtotal   string
	Shipping   string
	Tax        string
	Total      string
	Status     string
}

func (r *htmlRenderer) RenderOrder(ctx context.Context, order *models.Order) ([]byte, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
	}

	data := invoiceData{
		PurchaseID: order.PurchaseID,
		IssuedAt:   time.Now().UTC().Format("2 Jan 2006"),
		Subtotal:   money(order.SubtotalCents),
		Shipping:   money(order.ShippingCents),
		Tax:        money(order.TaxCents),
		Total:      money(order.TotalCents),
		Status:     string(order.Status),
	}
	if order.BillingAddress != nil {
		data.BillTo = order.BillingAddress.OneLine()
	}
	if order.ShippingAddress != nil {
		data.ShipTo = order.ShippingAddress.OneLine()
	}
	for _, item := range order.Items {
		data.Lines = append(data.Lines, invoiceLine{
			ProductName: item.ProductName,
			Qty:         item.Qty,
			UnitPrice:   money(item.UnitPriceCents),
			Total:       money(item.TotalCents),
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render invoice")
	}
	return buf.Bytes(), nil
}

func money(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.PurchaseID}}</title></head>
<body>
<h1>Invoice {{.PurchaseID}}</h1>
<p>Issued {{.IssuedAt}} &middot; Status: {{.Status}}</p>
{{if .BillTo}}<p><strong>Bill to:</strong> {{.BillTo}}</p>{{end}}
{{if .ShipTo}}<p><strong>Ship to:</strong> {{.ShipTo}}</p>{{end}}
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Item</th><th>Qty</th><th>Unit price</th><th>Total</th></tr>
{{range .Lines}}<tr><td>{{.ProductName}}</td><td>{{.Qty}}</td><td>{{.UnitPrice}}</td><td>{{.Total}}</td></tr>
{{end}}</table>
<p>Subtotal: {{.Subtotal}}<br>
Shipping: {{.Shipping}}<br>
Tax: {{.Tax}}<br>
<strong>Total: {{.Total}}</strong></p>
</body>
</html>`
