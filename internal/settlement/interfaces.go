package settlement

import (
	"context"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence for settlement entries and vendor balance
// credits.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// MarkLineItemSettled flips the settled flag only when it is still
	// false. Returns false when the line item was already settled or does
	// not exist.
	MarkLineItemSettled(ctx context.Context, lineItemID uuid.UUID) (bool, error)
	CreateEntry(ctx context.Context, entry *models.SettlementEntry) error
	// CreditVendor increments both balance columns by the net payout in a
	// single atomic statement.
	CreditVendor(ctx context.Context, vendorID uuid.UUID, netCents int64) error

	ListVendorEntries(ctx context.Context, vendorID uuid.UUID) ([]models.SettlementEntry, error)
	FindEntryByLineItem(ctx context.Context, lineItemID uuid.UUID) (*models.SettlementEntry, error)
}
