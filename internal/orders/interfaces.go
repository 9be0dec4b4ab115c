package orders

import (
	"context"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders and line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error

	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)

	FindLineItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error)
	FindLineItemsByCourierRef(ctx context.Context, courierRef string) ([]models.OrderLineItem, error)

	// UpdateOrderVersioned applies updates only when the stored version still
	// matches expectedVersion, bumping the version on success. Returns false
	// when another writer got there first.
	UpdateOrderVersioned(ctx context.Context, orderID uuid.UUID, expectedVersion int64, updates map[string]any) (bool, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdateLineItem(ctx context.Context, lineItemID uuid.UUID, updates map[string]any) error
}
