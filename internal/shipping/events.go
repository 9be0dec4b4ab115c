package shipping

import (
	"context"
	"fmt"
	"time"

	"github.com/bazaarlabs/bazaar-backend/internal/orders"
	"github.com/bazaarlabs/bazaar-backend/internal/settlement"
	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outcome classifies how a courier event was handled, for webhook metrics.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

// EventDeduper dedupes courier events by id.
type EventDeduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Event is one courier tracking update for a consignment, using the
// courier's wire field names.
type Event struct {
	EventID        string     `json:"event_id"`
	ConsignmentRef string     `json:"reference_no" validate:"required"`
	Status         string     `json:"status" validate:"required"`
	Description    string     `json:"desc"`
	HubName        string     `json:"hub_name"`
	RiderName      string     `json:"rider_name"`
	RiderCode      string     `json:"rider_code"`
	Reason         string     `json:"failure_reason"`
	PODImageURL    string     `json:"pod_image"`
	OccurredAt     *time.Time `json:"event_date_time"`
}

// EventProcessor applies courier tracking events: audit fields are written
// on every event, line item status follows the courier, terminal statuses
// promote the order, and a delivery settles the vendor's commission.
type EventProcessor interface {
	HandleEvent(ctx context.Context, event Event) (Outcome, error)
}

type eventProcessor struct {
	ledger     orders.Ledger
	repo       orders.Repository
	tx         txRunner
	settlement settlement.Service
	deduper    EventDeduper
	notifier   Notifier
	logger     *logger.Logger
}

// EventProcessorParams wires the shipment event processor.
type EventProcessorParams struct {
	Ledger     orders.Ledger
	Repo       orders.Repository
	Tx         txRunner
	Settlement settlement.Service
	Deduper    EventDeduper
	Notifier   Notifier
	Logger     *logger.Logger
}

// NewEventProcessor builds the processor. Deduper and Notifier may be nil.
func NewEventProcessor(params EventProcessorParams) (EventProcessor, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	return &eventProcessor{
		ledger:     params.Ledger,
		repo:       params.Repo,
		tx:         params.Tx,
		settlement: params.Settlement,
		deduper:    params.Deduper,
		notifier:   params.Notifier,
		logger:     params.Logger,
	}, nil
}

func (p *eventProcessor) HandleEvent(ctx context.Context, event Event) (Outcome, error) {
	if event.ConsignmentRef == "" {
		return OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "consignment ref required")
	}
	if event.Status == "" {
		return OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "status required")
	}

	dedupeID := event.EventID
	if dedupeID == "" {
		// couriers without event ids: dedupe on the tracking tuple
		dedupeID = fmt.Sprintf("%s|%s|%s", event.ConsignmentRef, event.Status, event.Description)
	}
	claimed := false
	if p.deduper != nil {
		var err error
		claimed, err = p.deduper.Claim(ctx, dedupeID)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn(ctx, fmt.Sprintf("courier event claim failed, processing anyway: %v", err))
			}
		} else if !claimed {
			if p.logger != nil {
				p.logger.Info(ctx, fmt.Sprintf("duplicate courier event %s ignored", dedupeID))
			}
			return OutcomeIgnored, nil
		}
	}

	outcome, err := p.process(ctx, event)
	if err != nil && claimed {
		if releaseErr := p.deduper.Release(ctx, dedupeID); releaseErr != nil && p.logger != nil {
			p.logger.Warn(ctx, fmt.Sprintf("releasing courier event claim %s: %v", dedupeID, releaseErr))
		}
	}
	return outcome, err
}

func (p *eventProcessor) process(ctx context.Context, event Event) (Outcome, error) {
	items, err := p.repo.FindLineItemsByCourierRef(ctx, event.ConsignmentRef)
	if err != nil {
		return OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find line items")
	}
	if len(items) == 0 {
		if p.logger != nil {
			p.logger.Warn(ctx, fmt.Sprintf("courier event for unknown consignment %s, acknowledging", event.ConsignmentRef))
		}
		return OutcomeIgnored, nil
	}

	orderID := items[0].OrderID
	for _, item := range items[1:] {
		if item.OrderID != orderID {
			return OutcomeFailed, pkgerrors.New(pkgerrors.CodeInternal,
				fmt.Sprintf("consignment %s spans multiple orders", event.ConsignmentRef))
		}
	}

	status, parseErr := enums.ParseCourierStatus(event.Status)
	if parseErr != nil && p.logger != nil {
		p.logger.Warn(ctx, fmt.Sprintf("courier status %q not recognized, recording audit only", event.Status))
	}

	var delivered []models.OrderLineItem
	err = p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)

		for _, item := range items {
			updates := auditUpdates(event)
			// terminal line items keep their status; the audit trail still
			// records the late event
			if parseErr == nil && !item.ShipmentStatus.IsTerminal() {
				updates["shipment_status"] = status
			}
			if err := repo.UpdateLineItem(ctx, item.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line item")
			}

			if parseErr == nil && status == enums.ShipmentStatusDelivered && !item.ShipmentStatus.IsTerminal() {
				settleItem := item
				if err := p.settlement.SettleLineItemTx(ctx, tx, &settleItem); err != nil {
					return err
				}
				delivered = append(delivered, item)
			}
		}

		if parseErr == nil && status.IsTerminal() {
			return p.promoteOrder(ctx, tx, repo, orderID)
		}
		return nil
	})
	if err != nil {
		return OutcomeFailed, err
	}

	p.notifyDelivered(ctx, orderID, delivered)
	return OutcomeProcessed, nil
}

// promoteOrder moves the order to its terminal status once every line item
// is terminal: delivered wins if any item arrived, otherwise cancelled.
func (p *eventProcessor) promoteOrder(ctx context.Context, tx *gorm.DB, repo orders.Repository, orderID uuid.UUID) error {
	items, err := repo.FindLineItemsByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order line items")
	}

	anyDelivered := false
	for _, item := range items {
		if !item.ShipmentStatus.IsTerminal() {
			return nil
		}
		if item.ShipmentStatus == enums.ShipmentStatusDelivered {
			anyDelivered = true
		}
	}

	target := enums.OrderStatusCancelled
	if anyDelivered {
		target = enums.OrderStatusDelivered
	}

	err = p.ledger.TransitionTx(ctx, tx, orderID, target, nil)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			// the order reached a terminal status through another path;
			// the line item audit trail is already written
			if p.logger != nil {
				p.logger.Warn(ctx, fmt.Sprintf("order %s not promoted to %s: %v", orderID, target, err))
			}
			return nil
		}
		return err
	}

	if p.logger != nil {
		p.logger.Info(ctx, fmt.Sprintf("order %s promoted to %s", orderID, target))
	}
	return nil
}

func (p *eventProcessor) notifyDelivered(ctx context.Context, orderID uuid.UUID, delivered []models.OrderLineItem) {
	if p.notifier == nil || len(delivered) == 0 {
		return
	}

	order, err := p.ledger.Get(ctx, orderID)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn(ctx, fmt.Sprintf("loading order %s for delivery notifications: %v", orderID, err))
		}
		return
	}

	p.notifier.Enqueue(ctx, models.Notification{
		ID:            uuid.New(),
		RecipientID:   order.CustomerID,
		TransactionID: &order.ID,
		Type:          enums.NotificationTypeOrderDelivered,
		Title:         "Delivery update",
		Description:   fmt.Sprintf("Items from order %s have been delivered.", order.PurchaseID),
	})
	for _, item := range delivered {
		p.notifier.Enqueue(ctx, models.Notification{
			ID:            uuid.New(),
			RecipientID:   item.VendorID,
			TransactionID: &order.ID,
			Type:          enums.NotificationTypeVendorSettled,
			Title:         "Earnings settled",
			Description:   fmt.Sprintf("%s from order %s was delivered and your earnings were credited.", item.ProductName, order.PurchaseID),
		})
	}
}

func auditUpdates(event Event) map[string]any {
	occurred := time.Now().UTC()
	if event.OccurredAt != nil {
		occurred = event.OccurredAt.UTC()
	}
	updates := map[string]any{
		"last_event_desc": event.Description,
		"last_event_at":   occurred,
	}
	if event.HubName != "" {
		updates["hub_name"] = event.HubName
	}
	if event.RiderName != "" {
		updates["rider_name"] = event.RiderName
	}
	if event.RiderCode != "" {
		updates["rider_code"] = event.RiderCode
	}
	if event.Reason != "" {
		updates["failure_reason"] = event.Reason
	}
	if event.PODImageURL != "" {
		updates["pod_image_url"] = event.PODImageURL
	}
	return updates
}
