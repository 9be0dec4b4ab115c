package withdrawals

import (
	"context"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence for withdrawal requests and vendor balance
// debits.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateRequest(ctx context.Context, request *models.WithdrawalRequest) error
	FindRequest(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	ListVendorRequests(ctx context.Context, vendorID uuid.UUID) ([]models.WithdrawalRequest, error)
	ListPendingRequests(ctx context.Context) ([]models.WithdrawalRequest, error)
	// TransitionRequest moves the request from one status to another only
	// when it is still in the expected status, applying updates alongside.
	// Returns false when a concurrent decision got there first.
	TransitionRequest(ctx context.Context, id uuid.UUID, from, to enums.WithdrawalStatus, updates map[string]any) (bool, error)

	FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	// DebitVendor subtracts amountCents from the available balance only when
	// the balance still covers it. Returns false when it no longer does.
	DebitVendor(ctx context.Context, vendorID uuid.UUID, amountCents int64) (bool, error)
}
