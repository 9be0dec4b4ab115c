package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
)

// OrderLineItem is one vendor's portion of an order, independently
// trackable through shipment. Shipment audit fields are written
// unconditionally on every courier event, even after the order is terminal.
type OrderLineItem struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	VendorID       uuid.UUID            `gorm:"column:vendor_id;type:uuid;not null;index"`
	ProductName    string               `gorm:"column:product_name;not null"`
	Qty            int                  `gorm:"column:qty;not null"`
	UnitPriceCents int                  `gorm:"column:unit_price_cents;not null"`
	TotalCents     int                  `gorm:"column:total_cents;not null"`
	ShipmentStatus enums.ShipmentStatus `gorm:"column:shipment_status;not null;default:'pending'"`
	CourierRef     *string              `gorm:"column:courier_ref;index"`
	Settled        bool                 `gorm:"column:settled;not null;default:false"`
	SettledAt      *time.Time           `gorm:"column:settled_at"`

	HubName       *string    `gorm:"column:hub_name"`
	RiderName     *string    `gorm:"column:rider_name"`
	RiderCode     *string    `gorm:"column:rider_code"`
	FailureReason *string    `gorm:"column:failure_reason"`
	PODImageURL   *string    `gorm:"column:pod_image_url"`
	LastEventDesc *string    `gorm:"column:last_event_desc"`
	LastEventAt   *time.Time `gorm:"column:last_event_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
