package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazaarlabs/bazaar-backend/internal/orders"
	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	pkgstripe "github.com/bazaarlabs/bazaar-backend/pkg/stripe"
	"github.com/bazaarlabs/bazaar-backend/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

const (
	purchaseIDPrefix  = "BZR"
	sessionRetries    = 3
	sessionRetryBase  = 200 * time.Millisecond
	sessionRetryLimit = 5 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LineInput is one vendor line of a checkout request.
type LineInput struct {
	VendorID       uuid.UUID `json:"vendor_id" validate:"required"`
	ProductName    string    `json:"product_name" validate:"required"`
	Qty            int       `json:"qty" validate:"required,gt=0"`
	UnitPriceCents int       `json:"unit_price_cents" validate:"required,gt=0"`
}

// Input is a customer checkout request. Totals are computed server-side;
// only shipping and tax are taken from the caller.
type Input struct {
	CustomerID      uuid.UUID      `json:"customer_id" validate:"required"`
	Currency        string         `json:"currency" validate:"omitempty,len=3"`
	ShippingCents   int            `json:"shipping_cents" validate:"gte=0"`
	TaxCents        int            `json:"tax_cents" validate:"gte=0"`
	Items           []LineInput    `json:"items" validate:"required,min=1,dive"`
	ShippingAddress *types.Address `json:"shipping_address"`
	BillingAddress  *types.Address `json:"billing_address"`
}

// Result is a created or refreshed checkout: the persisted order plus the
// hosted session the customer is redirected to.
type Result struct {
	Order      *models.Order `json:"order"`
	SessionID  string        `json:"session_id"`
	SessionURL string        `json:"session_url"`
}

// Service opens orders in unpaid and hands the customer to the hosted
// payment session. The order survives a failed session call; resending the
// session recovers it.
type Service interface {
	Create(ctx context.Context, input Input) (*Result, error)
	ResendSession(ctx context.Context, orderID uuid.UUID) (*Result, error)
}

type service struct {
	repo     orders.Repository
	tx       txRunner
	gateway  SessionCreator
	validate *validator.Validate
	logger   *logger.Logger
}

// NewService builds the checkout session initiator.
func NewService(repo orders.Repository, tx txRunner, gateway SessionCreator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		gateway:  gateway,
		validate: validator.New(),
		logger:   logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input Input) (*Result, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout request").
			WithDetails(validationDetails(err))
	}

	subtotal := 0
	items := make([]models.OrderLineItem, 0, len(input.Items))
	for _, line := range input.Items {
		lineTotal := line.Qty * line.UnitPriceCents
		subtotal += lineTotal
		items = append(items, models.OrderLineItem{
			ID:             uuid.New(),
			VendorID:       line.VendorID,
			ProductName:    line.ProductName,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     lineTotal,
			ShipmentStatus: enums.ShipmentStatusPending,
		})
	}

	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      input.CustomerID,
		PurchaseID:      newPurchaseID(),
		Status:          enums.OrderStatusUnpaid,
		SubtotalCents:   subtotal,
		ShippingCents:   input.ShippingCents,
		TaxCents:        input.TaxCents,
		TotalCents:      subtotal + input.ShippingCents + input.TaxCents,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		Version:         1,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Items = items

	session, err := s.openSession(ctx, order, input.Currency)
	if err != nil {
		// The order is already persisted. Surface its id so the caller can
		// resend the session instead of checking out again.
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment session").
			WithDetails(map[string]any{"order_id": order.ID})
	}

	if s.logger != nil {
		s.logger.Info(ctx, fmt.Sprintf("checkout %s opened for order %s (%d cents)", session.ID, order.ID, order.TotalCents))
	}
	return &Result{Order: order, SessionID: session.ID, SessionURL: session.URL}, nil
}

func (s *service) ResendSession(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrderWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusUnpaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s, a session can only be resent while unpaid", order.Status))
	}

	session, err := s.openSession(ctx, order, "")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment session")
	}
	return &Result{Order: order, SessionID: session.ID, SessionURL: session.URL}, nil
}

// openSession calls the gateway with backoff and records the session id on
// the order.
func (s *service) openSession(ctx context.Context, order *models.Order, currency string) (*pkgstripe.Session, error) {
	req := pkgstripe.SessionRequest{
		OrderID:    order.ID.String(),
		CustomerID: order.CustomerID.String(),
		PurchaseID: order.PurchaseID,
		Currency:   currency,
	}
	for _, item := range order.Items {
		req.Lines = append(req.Lines, pkgstripe.SessionLine{
			Name:           item.ProductName,
			Quantity:       int64(item.Qty),
			UnitAmountCent: int64(item.UnitPriceCents),
		})
	}
	if order.ShippingCents > 0 {
		req.Lines = append(req.Lines, pkgstripe.SessionLine{Name: "Shipping", Quantity: 1, UnitAmountCent: int64(order.ShippingCents)})
	}
	if order.TaxCents > 0 {
		req.Lines = append(req.Lines, pkgstripe.SessionLine{Name: "Tax", Quantity: 1, UnitAmountCent: int64(order.TaxCents)})
	}

	backoff := retry.WithMaxRetries(sessionRetries, retry.WithCappedDuration(sessionRetryLimit, retry.NewFibonacci(sessionRetryBase)))

	var session *pkgstripe.Session
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		created, err := s.gateway.CreateCheckoutSession(ctx, req)
		if err != nil {
			return retry.RetryableError(err)
		}
		session = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateOrder(ctx, order.ID, map[string]any{"session_id": session.ID}); err != nil {
		return nil, err
	}
	order.SessionID = &session.ID
	return session, nil
}

// newPurchaseID mints the human-facing purchase reference shown on invoices
// and gateway metadata.
func newPurchaseID() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%s", purchaseIDPrefix, strings.ToUpper(uuid.NewString()[:10]))
	}
	return fmt.Sprintf("%s-%s", purchaseIDPrefix, strings.ToUpper(hex.EncodeToString(buf)))
}

func validationDetails(err error) map[string]any {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return nil
	}
	details := make(map[string]any, len(fieldErrors))
	for _, fe := range fieldErrors {
		details[fe.Field()] = fe.Tag()
	}
	return details
}
