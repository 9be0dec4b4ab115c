package checkout

import (
	"context"

	pkgstripe "github.com/bazaarlabs/bazaar-backend/pkg/stripe"
)

// SessionCreator is the payment gateway surface the initiator needs.
// *pkgstripe.Client satisfies it.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req pkgstripe.SessionRequest) (*pkgstripe.Session, error)
}
