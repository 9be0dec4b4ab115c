package shipping

import (
	"context"

	"github.com/bazaarlabs/bazaar-backend/pkg/courier"
	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
)

// CourierGateway is the shipment provider surface the orchestrator and
// cancellation path need. *courier.Client satisfies it.
type CourierGateway interface {
	CreateShipment(ctx context.Context, req courier.CreateShipmentRequest) (*courier.ShipmentResult, error)
	CancelShipment(ctx context.Context, consignmentRef string) error
}

// Notifier delivers in-app notifications off the request path.
type Notifier interface {
	Enqueue(ctx context.Context, notification models.Notification)
}
