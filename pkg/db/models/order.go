package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	"github.com/bazaarlabs/bazaar-backend/pkg/types"
)

// Order is the authoritative record for a customer purchase. Status is owned
// by the order ledger; nothing else writes it.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID         `gorm:"column:customer_id;type:uuid;not null"`
	PurchaseID      string            `gorm:"column:purchase_id;not null;uniqueIndex"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'unpaid'"`
	SubtotalCents   int               `gorm:"column:subtotal_cents;not null"`
	ShippingCents   int               `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents        int               `gorm:"column:tax_cents;not null;default:0"`
	TotalCents      int               `gorm:"column:total_cents;not null"`
	ShippingAddress *types.Address    `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  *types.Address    `gorm:"column:billing_address;type:jsonb;serializer:json"`
	SessionID       *string           `gorm:"column:session_id"`
	Version         int64             `gorm:"column:version;not null;default:0"`
	Items           []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// ItemsSubtotalCents sums line totals; callers assert it equals SubtotalCents.
func (o Order) ItemsSubtotalCents() int {
	total := 0
	for _, item := range o.Items {
		total += item.TotalCents
	}
	return total
}
