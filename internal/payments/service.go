package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bazaarlabs/bazaar-backend/internal/orders"
	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	"github.com/bazaarlabs/bazaar-backend/pkg/mailer"
	"github.com/bazaarlabs/bazaar-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

// Notifier delivers in-app notifications off the request path.
type Notifier interface {
	Enqueue(ctx context.Context, notification models.Notification)
}

// Outcome classifies how an event was handled, for webhook metrics.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

// Service applies asynchronous payment gateway events to the order ledger.
// Events are deduped by id, unknown orders and unknown event types are
// acknowledged without effect, and every transition goes through the state
// machine so redeliveries cannot corrupt a terminal order.
type Service interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error)
}

type service struct {
	ledger   orders.Ledger
	guard    *IdempotencyGuard
	notifier Notifier
	mail     mailer.Sender
	logger   *logger.Logger
}

// ServiceParams wires the payment event processor.
type ServiceParams struct {
	Ledger   orders.Ledger
	Guard    *IdempotencyGuard
	Notifier Notifier
	Mailer   mailer.Sender
	Logger   *logger.Logger
}

// NewService builds the processor. Notifier and Mailer may be nil; their
// side effects are best-effort.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	return &service{
		ledger:   params.Ledger,
		guard:    params.Guard,
		notifier: params.Notifier,
		mail:     params.Mailer,
		logger:   params.Logger,
	}, nil
}

// sessionPayload is the slice of a checkout.session.completed object this
// processor reads. Decoded directly from the event body; newer API versions
// moved shipping under collected_information, so both spellings are read.
type sessionPayload struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   *partyDetails     `json:"customer_details"`
	ShippingDetails   *partyDetails     `json:"shipping_details"`
	CollectedInfo     *struct {
		ShippingDetails *partyDetails `json:"shipping_details"`
	} `json:"collected_information"`
}

type partyDetails struct {
	Email   string       `json:"email"`
	Name    string       `json:"name"`
	Phone   string       `json:"phone"`
	Address *wireAddress `json:"address"`
}

type wireAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type intentPayload struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

func (s *service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "event data required")
	}

	claimed, err := s.guard.Claim(ctx, event.ID)
	if err != nil {
		// Dedupe store down: fail open. Transitions are idempotent through
		// the state machine, so a duplicate at worst re-acks.
		if s.logger != nil {
			s.logger.Warn(ctx, fmt.Sprintf("idempotency claim for %s failed, processing anyway: %v", event.ID, err))
		}
	} else if !claimed {
		if s.logger != nil {
			s.logger.Info(ctx, fmt.Sprintf("duplicate gateway event %s ignored", event.ID))
		}
		return OutcomeIgnored, nil
	}

	outcome, err := s.dispatch(ctx, event)
	if err != nil && claimed {
		if releaseErr := s.guard.Release(ctx, event.ID); releaseErr != nil && s.logger != nil {
			s.logger.Warn(ctx, fmt.Sprintf("releasing claim for %s: %v", event.ID, releaseErr))
		}
	}
	return outcome, err
}

func (s *service) dispatch(ctx context.Context, event *stripe.Event) (Outcome, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session sessionPayload
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.onSessionCompleted(ctx, &session)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent intentPayload
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		return s.onPaymentFailed(ctx, &intent)
	default:
		return OutcomeIgnored, nil
	}
}

func (s *service) onSessionCompleted(ctx context.Context, session *sessionPayload) (Outcome, error) {
	orderID, ok := s.orderIDFrom(ctx, session.Metadata, session.ClientReferenceID)
	if !ok {
		return OutcomeIgnored, nil
	}

	updates := map[string]any{"session_id": session.ID}
	if addr := snapshotAddress(shippingParty(session)); addr != nil {
		updates["shipping_address"] = addressJSON(ctx, s.logger, addr)
	}
	if addr := snapshotAddress(session.CustomerDetails); addr != nil {
		updates["billing_address"] = addressJSON(ctx, s.logger, addr)
	}

	err := s.ledger.Transition(ctx, orderID, enums.OrderStatusProcessing, updates)
	switch {
	case err == nil:
	case isAcknowledgeable(err):
		if s.logger != nil {
			s.logger.Warn(ctx, fmt.Sprintf("session completed for order %s not applied: %v", orderID, err))
		}
		return OutcomeIgnored, nil
	default:
		return OutcomeFailed, err
	}

	order, loadErr := s.ledger.Get(ctx, orderID)
	if loadErr != nil {
		// transition landed; side effects just lose their context
		if s.logger != nil {
			s.logger.Warn(ctx, fmt.Sprintf("loading order %s for side effects: %v", orderID, loadErr))
		}
		return OutcomeProcessed, nil
	}

	s.notify(ctx, order.CustomerID, &order.ID, enums.NotificationTypeOrderPaid,
		"Payment received",
		fmt.Sprintf("Payment for order %s is confirmed and fulfillment has started.", order.PurchaseID))
	s.sendReceipt(ctx, order, session)

	if s.logger != nil {
		s.logger.Info(ctx, fmt.Sprintf("order %s marked processing from session %s", orderID, session.ID))
	}
	return OutcomeProcessed, nil
}

func (s *service) onPaymentFailed(ctx context.Context, intent *intentPayload) (Outcome, error) {
	orderID, ok := s.orderIDFrom(ctx, intent.Metadata, "")
	if !ok {
		return OutcomeIgnored, nil
	}

	err := s.ledger.Transition(ctx, orderID, enums.OrderStatusUnpaid, nil)
	switch {
	case err == nil:
	case isAcknowledgeable(err):
		if s.logger != nil {
			s.logger.Warn(ctx, fmt.Sprintf("payment failure for order %s not applied: %v", orderID, err))
		}
		return OutcomeIgnored, nil
	default:
		return OutcomeFailed, err
	}

	if order, loadErr := s.ledger.Get(ctx, orderID); loadErr == nil {
		s.notify(ctx, order.CustomerID, &order.ID, enums.NotificationTypePaymentFailed,
			"Payment failed",
			fmt.Sprintf("Payment for order %s did not go through. Please try again.", order.PurchaseID))
	}

	if s.logger != nil {
		s.logger.Info(ctx, fmt.Sprintf("order %s reverted to unpaid after failed intent %s", orderID, intent.ID))
	}
	return OutcomeProcessed, nil
}

// orderIDFrom resolves the order correlation id from event metadata, falling
// back to the client reference. A missing or malformed id is logged and the
// event acknowledged; the gateway cannot fix it by redelivering.
func (s *service) orderIDFrom(ctx context.Context, metadata map[string]string, fallback string) (uuid.UUID, bool) {
	raw := metadata["order_id"]
	if raw == "" {
		raw = fallback
	}
	if raw == "" {
		if s.logger != nil {
			s.logger.Warn(ctx, "gateway event carries no order id, acknowledging")
		}
		return uuid.Nil, false
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn(ctx, fmt.Sprintf("gateway event carries malformed order id %q, acknowledging", raw))
		}
		return uuid.Nil, false
	}
	return orderID, true
}

// isAcknowledgeable reports event outcomes that must not trigger a gateway
// redelivery: the order is unknown or the transition is disallowed, and
// neither changes on retry.
func isAcknowledgeable(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict:
		return true
	default:
		return false
	}
}

func shippingParty(session *sessionPayload) *partyDetails {
	if session.CollectedInfo != nil && session.CollectedInfo.ShippingDetails != nil {
		return session.CollectedInfo.ShippingDetails
	}
	return session.ShippingDetails
}

func snapshotAddress(party *partyDetails) *types.Address {
	if party == nil || party.Address == nil {
		return nil
	}
	addr := types.Address{
		Name:       party.Name,
		Line1:      party.Address.Line1,
		Line2:      party.Address.Line2,
		City:       party.Address.City,
		State:      party.Address.State,
		PostalCode: party.Address.PostalCode,
		Country:    party.Address.Country,
		Phone:      party.Phone,
	}
	if addr.IsZero() {
		return nil
	}
	return &addr
}

// addressJSON serializes the snapshot for a column-map update, which skips
// the model serializer.
func addressJSON(ctx context.Context, logg *logger.Logger, addr *types.Address) string {
	encoded, err := json.Marshal(addr)
	if err != nil {
		if logg != nil {
			logg.Warn(ctx, fmt.Sprintf("encoding address snapshot: %v", err))
		}
		return "{}"
	}
	return string(encoded)
}

func (s *service) notify(ctx context.Context, recipient uuid.UUID, orderID *uuid.UUID, kind enums.NotificationType, title, body string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(ctx, models.Notification{
		ID:            uuid.New(),
		RecipientID:   recipient,
		TransactionID: orderID,
		Type:          kind,
		Title:         title,
		Description:   body,
	})
}

// sendReceipt emails the payment confirmation. Failures are logged only.
func (s *service) sendReceipt(ctx context.Context, order *models.Order, session *sessionPayload) {
	if s.mail == nil || session.CustomerDetails == nil || session.CustomerDetails.Email == "" {
		return
	}
	msg := mailer.Message{
		To:      session.CustomerDetails.Email,
		Subject: fmt.Sprintf("Receipt for order %s", order.PurchaseID),
		Body: fmt.Sprintf("<p>We received your payment of %d.%02d for order %s. Your items are being prepared for shipment.</p>",
			order.TotalCents/100, order.TotalCents%100, order.PurchaseID),
	}
	if err := s.mail.Send(ctx, msg); err != nil && s.logger != nil {
		s.logger.Warn(ctx, fmt.Sprintf("sending receipt for order %s: %v", order.ID, err))
	}
}
