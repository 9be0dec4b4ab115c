package shipping

import (
	"context"
	"testing"

	"github.com/bazaarlabs/bazaar-backend/internal/orders"
	"github.com/bazaarlabs/bazaar-backend/internal/settlement"
	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryDeduper struct {
	claimed map[string]bool
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{claimed: map[string]bool{}}
}

func (m *memoryDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	if m.claimed[eventID] {
		return false, nil
	}
	m.claimed[eventID] = true
	return true, nil
}

func (m *memoryDeduper) Release(ctx context.Context, eventID string) error {
	delete(m.claimed, eventID)
	return nil
}

type eventFixture struct {
	conn      *gorm.DB
	processor EventProcessor
	notifier  *captureNotifier
	deduper   *memoryDeduper
}

func newEventFixture(t *testing.T) *eventFixture {
	t.Helper()
	conn := openTestDB(t)
	repo := orders.NewRepository(conn)
	tx := testTxRunner{conn: conn}
	ledger, err := orders.NewLedger(repo, tx)
	require.NoError(t, err)

	settlementSvc, err := settlement.NewService(settlement.NewRepository(conn), decimal.RequireFromString("0.10"), nil)
	require.NoError(t, err)

	notifier := &captureNotifier{}
	deduper := newMemoryDeduper()
	processor, err := NewEventProcessor(EventProcessorParams{
		Ledger:     ledger,
		Repo:       repo,
		Tx:         tx,
		Settlement: settlementSvc,
		Deduper:    deduper,
		Notifier:   notifier,
	})
	require.NoError(t, err)
	return &eventFixture{conn: conn, processor: processor, notifier: notifier, deduper: deduper}
}

func (f *eventFixture) seedVendor(t *testing.T) *models.Vendor {
	t.Helper()
	vendor := &models.Vendor{
		ID:       uuid.New(),
		Name:     "Clay & Co",
		Email:    uuid.NewString() + "@vendors.test",
		Approved: true,
	}
	require.NoError(t, f.conn.Create(vendor).Error)
	return vendor
}

// seedShippedOrder creates a shipped order with one consignment per vendor.
func (f *eventFixture) seedShippedOrder(t *testing.T, refsByVendor map[uuid.UUID]string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		PurchaseID: "BZR-" + uuid.NewString()[:8],
		Status:     enums.OrderStatusShipped,
		Version:    1,
	}
	require.NoError(t, f.conn.Create(order).Error)

	for vendorID, ref := range refsByVendor {
		consign := ref
		item := &models.OrderLineItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			VendorID:       vendorID,
			ProductName:    "ceramic mug",
			Qty:            1,
			UnitPriceCents: 10000,
			TotalCents:     10000,
			ShipmentStatus: enums.ShipmentStatusShipped,
			CourierRef:     &consign,
		}
		require.NoError(t, f.conn.Create(item).Error)
	}
	return order
}

func (f *eventFixture) itemsByRef(t *testing.T, ref string) []models.OrderLineItem {
	t.Helper()
	var items []models.OrderLineItem
	require.NoError(t, f.conn.Where("courier_ref = ?", ref).Find(&items).Error)
	return items
}

func (f *eventFixture) orderStatus(t *testing.T, orderID uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.Where("id = ?", orderID).First(&order).Error)
	return order.Status
}

func TestInTransitEventUpdatesItems(t *testing.T) {
	f := newEventFixture(t)
	vendor := f.seedVendor(t)
	order := f.seedShippedOrder(t, map[uuid.UUID]string{vendor.ID: "CN-1001"})

	outcome, err := f.processor.HandleEvent(context.Background(), Event{
		EventID:        "crev_1",
		ConsignmentRef: "CN-1001",
		Status:         "In Transit",
		Description:    "Departed sorting hub",
		HubName:        "Central Hub",
		RiderName:      "R. Osei",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	items := f.itemsByRef(t, "CN-1001")
	require.Len(t, items, 1)
	require.Equal(t, enums.ShipmentStatusInTransit, items[0].ShipmentStatus)
	require.NotNil(t, items[0].HubName)
	require.Equal(t, "Central Hub", *items[0].HubName)
	require.NotNil(t, items[0].LastEventDesc)
	require.Equal(t, "Departed sorting hub", *items[0].LastEventDesc)

	require.Equal(t, enums.OrderStatusShipped, f.orderStatus(t, order.ID))
	require.False(t, items[0].Settled)
}

func TestDeliveredEventSettlesAndPromotes(t *testing.T) {
	f := newEventFixture(t)
	vendor := f.seedVendor(t)
	order := f.seedShippedOrder(t, map[uuid.UUID]string{vendor.ID: "CN-2001"})

	outcome, err := f.processor.HandleEvent(context.Background(), Event{
		EventID:        "crev_2",
		ConsignmentRef: "CN-2001",
		Status:         "delivered",
		Description:    "Delivered to recipient",
		PODImageURL:    "https://pod.example/2001.jpg",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	items := f.itemsByRef(t, "CN-2001")
	require.Equal(t, enums.ShipmentStatusDelivered, items[0].ShipmentStatus)
	require.True(t, items[0].Settled)

	var got models.Vendor
	require.NoError(t, f.conn.Where("id = ?", vendor.ID).First(&got).Error)
	require.EqualValues(t, 10000, got.TotalEarningsCents)
	require.EqualValues(t, 9000, got.AvailableWithdrawalCents)

	require.Equal(t, enums.OrderStatusDelivered, f.orderStatus(t, order.ID))

	require.Len(t, f.notifier.ofType(enums.NotificationTypeOrderDelivered), 1)
	require.Len(t, f.notifier.ofType(enums.NotificationTypeVendorSettled), 1)
}

func TestPartialDeliveryDoesNotPromote(t *testing.T) {
	f := newEventFixture(t)
	vendorA := f.seedVendor(t)
	vendorB := f.seedVendor(t)
	order := f.seedShippedOrder(t, map[uuid.UUID]string{
		vendorA.ID: "CN-3001",
		vendorB.ID: "CN-3002",
	})

	_, err := f.processor.HandleEvent(context.Background(), Event{
		EventID:        "crev_3",
		ConsignmentRef: "CN-3001",
		Status:         "delivered",
	})
	require.NoError(t, err)

	// one consignment still in flight, the order must stay shipped
	require.Equal(t, enums.OrderStatusShipped, f.orderStatus(t, order.ID))

	// settlement for the delivered vendor already happened
	var got models.Vendor
	require.NoError(t, f.conn.Where("id = ?", vendorA.ID).First(&got).Error)
	require.EqualValues(t, 9000, got.AvailableWithdrawalCents)

	_, err = f.processor.HandleEvent(context.Background(), Event{
		EventID:        "crev_4",
		ConsignmentRef: "CN-3002",
		Status:         "delivered",
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, f.orderStatus(t, order.ID))
}

func TestAllReturnedPromotesToCancelled(t *testing.T) {
	f := newEventFixture(t)
	vendor := f.seedVendor(t)
	order := f.seedShippedOrder(t, map[uuid.UUID]string{vendor.ID: "CN-4001"})

	outcome, err := f.processor.HandleEvent(context.Background(), Event{
		EventID:        "crev_5",
		ConsignmentRef: "CN-4001",
		Status:         "Return to Origin - Delivered",
		Reason:         "recipient unreachable",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	items := f.itemsByRef(t, "CN-4001")
	require.Equal(t, enums.ShipmentStatusRTODelivered, items[0].ShipmentStatus)
	require.False(t, items[0].Settled)
	require.NotNil(t, items[0].FailureReason)

	require.Equal(t, enums.OrderStatusCancelled, f.orderStatus(t, order.ID))

	// no money moved for a returned item
	var got models.Vendor
	require.NoError(t, f.conn.Where("id = ?", vendor.ID).First(&got).Error)
	require.EqualValues(t, 0, got.TotalEarningsCents)
}

func TestMixedTerminalOutcomesPreferDelivered(t *testing.T) {
	f := newEventFixture(t)
	vendorA := f.seedVendor(t)
	vendorB := f.seedVendor(t)
	order := f.seedShippedOrder(t, map[uuid.UUID]string{
		vendorA.ID: "CN-5001",
		vendorB.ID: "CN-5002",
	})

	_, err := f.processor.HandleEvent(context.Background(), Event{
		EventID: "crev_6", ConsignmentRef: "CN-5001", Status: "delivered",
	})
	require.NoError(t, err)
	_, err = f.processor.HandleEvent(context.Background(), Event{
		EventID: "crev_7", ConsignmentRef: "CN-5002", Status: "rto_delivered",
	})
	require.NoError(t, err)

	require.Equal(t, enums.OrderStatusDelivered, f.orderStatus(t, order.ID))
}

func TestUnknownConsignmentAcknowledged(t *testing.T) {
	f := newEventFixture(t)

	outcome, err := f.processor.HandleEvent(context.Background(), Event{
		EventID:        "crev_8",
		ConsignmentRef: "CN-MISSING",
		Status:         "delivered",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, outcome)
}

func TestConsignmentSpanningOrdersRejected(t *testing.T) {
	f := newEventFixture(t)
	vendor := f.seedVendor(t)
	f.seedShippedOrder(t, map[uuid.UUID]string{vendor.ID: "CN-6001"})

	// corrupt: a second order reusing the same consignment ref
	other := f.seedShippedOrder(t, map[uuid.UUID]string{vendor.ID: "CN-OTHER"})
	require.NoError(t, f.conn.Model(&models.OrderLineItem{}).
		Where("order_id = ?", other.ID).
		Update("courier_ref", "CN-6001").Error)

	outcome, err := f.processor.HandleEvent(context.Background(), Event{
		EventID:        "crev_9",
		ConsignmentRef: "CN-6001",
		Status:         "delivered",
	})
	require.Error(t, err)
	require.Equal(t, OutcomeFailed, outcome)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInternal, typed.Code())
}

func TestUnrecognizedStatusRecordsAuditOnly(t *testing.T) {
	f := newEventFixture(t)
	vendor := f.seedVendor(t)
	order := f.seedShippedOrder(t, map[uuid.UUID]string{vendor.ID: "CN-7001"})

	outcome, err := f.processor.HandleEvent(context.Background(), Event{
		EventID:        "crev_10",
		ConsignmentRef: "CN-7001",
		Status:         "teleported",
		Description:    "custom carrier state",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	items := f.itemsByRef(t, "CN-7001")
	require.Equal(t, enums.ShipmentStatusShipped, items[0].ShipmentStatus)
	require.NotNil(t, items[0].LastEventDesc)
	require.Equal(t, "custom carrier state", *items[0].LastEventDesc)
	require.Equal(t, enums.OrderStatusShipped, f.orderStatus(t, order.ID))
}

func TestDuplicateCourierEventIgnored(t *testing.T) {
	f := newEventFixture(t)
	vendor := f.seedVendor(t)
	f.seedShippedOrder(t, map[uuid.UUID]string{vendor.ID: "CN-8001"})

	event := Event{EventID: "crev_11", ConsignmentRef: "CN-8001", Status: "delivered"}
	_, err := f.processor.HandleEvent(context.Background(), event)
	require.NoError(t, err)

	outcome, err := f.processor.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, outcome)

	// balance credited exactly once
	var got models.Vendor
	require.NoError(t, f.conn.Where("id = ?", vendor.ID).First(&got).Error)
	require.EqualValues(t, 9000, got.AvailableWithdrawalCents)
}

func TestLateEventAfterTerminalItemKeepsStatus(t *testing.T) {
	f := newEventFixture(t)
	vendor := f.seedVendor(t)
	order := f.seedShippedOrder(t, map[uuid.UUID]string{vendor.ID: "CN-9001"})

	_, err := f.processor.HandleEvent(context.Background(), Event{
		EventID: "crev_12", ConsignmentRef: "CN-9001", Status: "delivered",
	})
	require.NoError(t, err)

	// a straggler tracking update arrives after delivery
	outcome, err := f.processor.HandleEvent(context.Background(), Event{
		EventID:        "crev_13",
		ConsignmentRef: "CN-9001",
		Status:         "in_transit",
		Description:    "late scan",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	items := f.itemsByRef(t, "CN-9001")
	require.Equal(t, enums.ShipmentStatusDelivered, items[0].ShipmentStatus)
	require.NotNil(t, items[0].LastEventDesc)
	require.Equal(t, "late scan", *items[0].LastEventDesc)

	require.Equal(t, enums.OrderStatusDelivered, f.orderStatus(t, order.ID))
	require.True(t, items[0].Settled)

	// still settled exactly once
	var count int64
	require.NoError(t, f.conn.Model(&models.SettlementEntry{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
