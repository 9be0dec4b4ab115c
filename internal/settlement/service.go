package settlement

import (
	"context"
	"fmt"

	"github.com/bazaarlabs/bazaar-backend/pkg/db"
	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service credits vendor earnings when a line item reaches delivered.
// Settlement is exactly-once per line item: the settled flag guard, the
// unique index on settlement entries, and atomic balance increments each
// independently prevent double-crediting.
type Service interface {
	SettleLineItemTx(ctx context.Context, tx *gorm.DB, item *models.OrderLineItem) error
	ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]models.SettlementEntry, error)
}

type service struct {
	repo   Repository
	rate   decimal.Decimal
	logger *logger.Logger
}

// NewService builds the settlement service. rate is the platform commission
// as a fraction of gross, already validated by config.
func NewService(repo Repository, rate decimal.Decimal, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate %s outside [0, 1)", rate)
	}
	return &service{repo: repo, rate: rate, logger: logg}, nil
}

// split returns the commission and net payout for a gross amount. The
// commission rounds half-up to a whole cent; the vendor gets the remainder,
// so the two always sum to gross.
func (s *service) split(grossCents int64) (commissionCents, netCents int64) {
	gross := decimal.NewFromInt(grossCents)
	commissionCents = gross.Mul(s.rate).Round(0).IntPart()
	netCents = grossCents - commissionCents
	return commissionCents, netCents
}

func (s *service) SettleLineItemTx(ctx context.Context, tx *gorm.DB, item *models.OrderLineItem) error {
	if item == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "line item required")
	}
	repo := s.repo.WithTx(tx)

	settled, err := repo.MarkLineItemSettled(ctx, item.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark line item settled")
	}
	if !settled {
		// already credited by a previous delivery event
		if s.logger != nil {
			s.logger.Info(ctx, fmt.Sprintf("line item %s already settled, skipping", item.ID))
		}
		return nil
	}

	gross := int64(item.TotalCents)
	_, net := s.split(gross)

	entry := &models.SettlementEntry{
		ID:             uuid.New(),
		LineItemID:     item.ID,
		OrderID:        item.OrderID,
		VendorID:       item.VendorID,
		GrossCents:     gross,
		NetPayoutCents: net,
		CommissionRate: s.rate.String(),
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "ux_settlement_entries_line_item") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "settlement entry already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settlement entry")
	}

	if err := repo.CreditVendor(ctx, item.VendorID, net); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit vendor balance")
	}

	if s.logger != nil {
		s.logger.Info(ctx, fmt.Sprintf("settled line item %s for vendor %s: gross %d, net %d", item.ID, item.VendorID, gross, net))
	}
	return nil
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]models.SettlementEntry, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	entries, err := s.repo.ListVendorEntries(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settlement entries")
	}
	return entries, nil
}
