package settlement

import (
	"context"
	"time"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) MarkLineItemSettled(ctx context.Context, lineItemID uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Where("id = ? AND settled = ?", lineItemID, false).
		Updates(map[string]any{"settled": true, "settled_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.SettlementEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreditVendor(ctx context.Context, vendorID uuid.UUID, netCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ?", vendorID).
		Updates(map[string]any{
			"total_earnings_cents":       gorm.Expr("total_earnings_cents + ?", netCents),
			"available_withdrawal_cents": gorm.Expr("available_withdrawal_cents + ?", netCents),
		}).Error
}

func (r *repository) ListVendorEntries(ctx context.Context, vendorID uuid.UUID) ([]models.SettlementEntry, error) {
	var entries []models.SettlementEntry
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindEntryByLineItem(ctx context.Context, lineItemID uuid.UUID) (*models.SettlementEntry, error) {
	var entry models.SettlementEntry
	err := r.db.WithContext(ctx).
		Where("line_item_id = ?", lineItemID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
