package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor carries the running earnings balances. Both balance columns are
// mutated only through atomic SQL increments: the settlement ledger credits,
// the withdrawal pipeline debits.
type Vendor struct {
	ID                       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                     string    `gorm:"column:name;not null"`
	Email                    string    `gorm:"column:email;not null;uniqueIndex"`
	Approved                 bool      `gorm:"column:approved;not null;default:false"`
	TotalEarningsCents       int64     `gorm:"column:total_earnings_cents;not null;default:0"`
	AvailableWithdrawalCents int64     `gorm:"column:available_withdrawal_cents;not null;default:0"`
	CreatedAt                time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
