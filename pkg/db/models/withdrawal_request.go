package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
)

// WithdrawalRequest tracks a vendor payout from request through admin
// decision. Available balance is reserved only when the request is marked
// paid; creation validates against the balance but does not hold it.
type WithdrawalRequest struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID       uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null;index"`
	BankDetailID   uuid.UUID              `gorm:"column:bank_detail_id;type:uuid;not null"`
	AmountCents    int64                  `gorm:"column:amount_cents;not null"`
	Status         enums.WithdrawalStatus `gorm:"column:status;not null;default:'pending'"`
	TransactionRef *string                `gorm:"column:transaction_ref"`
	InvoiceURL     *string                `gorm:"column:invoice_url"`
	Note           *string                `gorm:"column:note"`
	DecidedBy      *uuid.UUID             `gorm:"column:decided_by;type:uuid"`
	PaidAt         *time.Time             `gorm:"column:paid_at"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
