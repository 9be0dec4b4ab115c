package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
)

// Notification is an in-app message created as a best-effort side effect of
// order lifecycle transitions.
type Notification struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuthorID      *uuid.UUID             `gorm:"column:author_id;type:uuid"`
	RecipientID   uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null;index"`
	TransactionID *uuid.UUID             `gorm:"column:transaction_id;type:uuid"`
	Title         string                 `gorm:"column:title;not null"`
	Description   string                 `gorm:"column:description;not null"`
	Type          enums.NotificationType `gorm:"column:type;not null"`
	ReadAt        *time.Time             `gorm:"column:read_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}
