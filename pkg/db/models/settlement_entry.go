package models

import (
	"time"

	"github.com/google/uuid"
)

// SettlementEntry is the append-only record of one vendor commission
// settlement. The unique line item index is the database-level defense
// against double-crediting.
type SettlementEntry struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LineItemID     uuid.UUID `gorm:"column:line_item_id;type:uuid;not null;uniqueIndex:ux_settlement_entries_line_item"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	VendorID       uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	GrossCents     int64     `gorm:"column:gross_cents;not null"`
	NetPayoutCents int64     `gorm:"column:net_payout_cents;not null"`
	CommissionRate string    `gorm:"column:commission_rate;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
