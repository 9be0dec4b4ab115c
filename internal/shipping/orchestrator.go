package shipping

import (
	"context"
	"fmt"

	"github.com/bazaarlabs/bazaar-backend/internal/orders"
	"github.com/bazaarlabs/bazaar-backend/pkg/courier"
	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Orchestrator books courier shipments for a paid order, one consignment per
// vendor, all-or-nothing: if any vendor's booking fails, every consignment
// already created is cancelled and nothing is persisted.
type Orchestrator interface {
	Ship(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*CancelResult, error)
}

// CancelResult reports a cancellation. Line items the courier has already
// delivered cannot be recalled; their ids are listed so the caller sees
// which goods still reached the customer.
type CancelResult struct {
	Order          *models.Order `json:"order"`
	DeliveredItems []uuid.UUID   `json:"delivered_items,omitempty"`
}

type orchestrator struct {
	ledger   orders.Ledger
	repo     orders.Repository
	tx       txRunner
	gateway  CourierGateway
	notifier Notifier
	logger   *logger.Logger
}

// OrchestratorParams wires the shipment orchestrator.
type OrchestratorParams struct {
	Ledger   orders.Ledger
	Repo     orders.Repository
	Tx       txRunner
	Gateway  CourierGateway
	Notifier Notifier
	Logger   *logger.Logger
}

// NewOrchestrator builds the shipment orchestrator. Notifier may be nil.
func NewOrchestrator(params OrchestratorParams) (Orchestrator, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("courier gateway required")
	}
	return &orchestrator{
		ledger:   params.Ledger,
		repo:     params.Repo,
		tx:       params.Tx,
		gateway:  params.Gateway,
		notifier: params.Notifier,
		logger:   params.Logger,
	}, nil
}

type vendorGroup struct {
	vendorID uuid.UUID
	items    []models.OrderLineItem
}

type booking struct {
	group vendorGroup
	ref   string
}

func (o *orchestrator) Ship(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := o.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s, only processing orders can be shipped", order.Status))
	}
	if order.ShippingAddress == nil || order.ShippingAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no shipping address")
	}
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
	}

	groups := groupByVendor(order.Items)

	bookings := make([]booking, 0, len(groups))
	for _, group := range groups {
		result, err := o.createShipment(ctx, order, group)
		if err != nil {
			return nil, o.compensate(ctx, order.ID, bookings, err)
		}
		bookings = append(bookings, booking{group: group, ref: result.ConsignmentRef})
	}

	err = o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := o.repo.WithTx(tx)
		for _, b := range bookings {
			for _, item := range b.group.items {
				updates := map[string]any{
					"courier_ref":     b.ref,
					"shipment_status": enums.ShipmentStatusShipped,
				}
				if err := repo.UpdateLineItem(ctx, item.ID, updates); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line item")
				}
			}
		}
		return o.ledger.TransitionTx(ctx, tx, order.ID, enums.OrderStatusShipped, nil)
	})
	if err != nil {
		// consignments exist but nothing was persisted; release them so the
		// retry books fresh ones
		return nil, o.compensate(ctx, order.ID, bookings, err)
	}

	o.notifyShipped(ctx, order, bookings)

	shipped, err := o.ledger.Get(ctx, order.ID)
	if err != nil {
		return order, nil
	}
	return shipped, nil
}

func (o *orchestrator) createShipment(ctx context.Context, order *models.Order, group vendorGroup) (*courier.ShipmentResult, error) {
	req := courier.CreateShipmentRequest{
		OrderID:         order.ID.String(),
		VendorID:        group.vendorID.String(),
		RecipientName:   order.ShippingAddress.Name,
		RecipientPhone:  order.ShippingAddress.Phone,
		DeliveryAddress: order.ShippingAddress.OneLine(),
	}
	for _, item := range group.items {
		req.Items = append(req.Items, courier.ShipmentItem{
			LineItemID:  item.ID.String(),
			ProductName: item.ProductName,
			Qty:         item.Qty,
		})
	}
	return o.gateway.CreateShipment(ctx, req)
}

// compensate cancels every consignment created before the failure. Cancel
// errors are appended to the cause so the operator sees the full picture.
func (o *orchestrator) compensate(ctx context.Context, orderID uuid.UUID, bookings []booking, cause error) error {
	combined := cause
	for _, b := range bookings {
		if err := o.gateway.CancelShipment(ctx, b.ref); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("cancel consignment %s: %w", b.ref, err))
		}
	}
	if o.logger != nil {
		o.logger.Error(ctx, fmt.Sprintf("shipment booking for order %s rolled back (%d consignments cancelled)", orderID, len(bookings)), combined)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, combined, "book shipments")
}

func (o *orchestrator) Cancel(ctx context.Context, orderID uuid.UUID) (*CancelResult, error) {
	order, err := o.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s and cannot be cancelled", order.Status))
	}

	// Release live consignments first. If the courier refuses, the order
	// stays as-is and the admin retries once the courier recovers.
	// Delivered items are past recall; they are reported, not cancelled.
	var cancelErr error
	var deliveredItems []uuid.UUID
	cancelled := map[string]bool{}
	for _, item := range order.Items {
		if item.ShipmentStatus == enums.ShipmentStatusDelivered {
			deliveredItems = append(deliveredItems, item.ID)
		}
		if item.CourierRef == nil || *item.CourierRef == "" || item.ShipmentStatus.IsTerminal() {
			continue
		}
		ref := *item.CourierRef
		if cancelled[ref] {
			continue
		}
		if err := o.gateway.CancelShipment(ctx, ref); err != nil {
			cancelErr = multierr.Append(cancelErr, fmt.Errorf("cancel consignment %s: %w", ref, err))
			continue
		}
		cancelled[ref] = true
	}
	if cancelErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, cancelErr, "cancel shipments")
	}

	err = o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := o.repo.WithTx(tx)
		for _, item := range order.Items {
			if item.ShipmentStatus.IsTerminal() {
				continue
			}
			updates := map[string]any{"shipment_status": enums.ShipmentStatusCancelled}
			if err := repo.UpdateLineItem(ctx, item.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line item")
			}
		}
		return o.ledger.TransitionTx(ctx, tx, order.ID, enums.OrderStatusCancelled, nil)
	})
	if err != nil {
		return nil, err
	}

	o.notify(ctx, order.CustomerID, &order.ID, enums.NotificationTypeOrderCancelled,
		"Order cancelled",
		fmt.Sprintf("Order %s has been cancelled.", order.PurchaseID))

	result := &CancelResult{Order: order, DeliveredItems: deliveredItems}
	if fresh, err := o.ledger.Get(ctx, order.ID); err == nil {
		result.Order = fresh
	}
	return result, nil
}

func (o *orchestrator) notifyShipped(ctx context.Context, order *models.Order, bookings []booking) {
	o.notify(ctx, order.CustomerID, &order.ID, enums.NotificationTypeOrderShipped,
		"Order shipped",
		fmt.Sprintf("Order %s is on its way.", order.PurchaseID))
	for _, b := range bookings {
		o.notify(ctx, b.group.vendorID, &order.ID, enums.NotificationTypeOrderShipped,
			"Shipment booked",
			fmt.Sprintf("Consignment %s was booked for order %s.", b.ref, order.PurchaseID))
	}
}

func (o *orchestrator) notify(ctx context.Context, recipient uuid.UUID, orderID *uuid.UUID, kind enums.NotificationType, title, body string) {
	if o.notifier == nil {
		return
	}
	o.notifier.Enqueue(ctx, models.Notification{
		ID:            uuid.New(),
		RecipientID:   recipient,
		TransactionID: orderID,
		Type:          kind,
		Title:         title,
		Description:   body,
	})
}

// groupByVendor splits line items into per-vendor consignment groups,
// preserving input order.
func groupByVendor(items []models.OrderLineItem) []vendorGroup {
	index := map[uuid.UUID]int{}
	groups := []vendorGroup{}
	for _, item := range items {
		pos, seen := index[item.VendorID]
		if !seen {
			index[item.VendorID] = len(groups)
			groups = append(groups, vendorGroup{vendorID: item.VendorID, items: []models.OrderLineItem{item}})
			continue
		}
		groups[pos].items = append(groups[pos].items, item)
	}
	return groups
}
