package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Ledger is the sole owner of order status. Every transition passes through
// the state machine; concurrent writers are serialized per order by the
// version check and a bounded retry.
type Ledger interface {
	Transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, updates map[string]any) error
	TransitionTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus, updates map[string]any) error
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
}

const transitionAttempts = 3

type service struct {
	repo Repository
	tx   txRunner
}

// NewLedger builds the order ledger service.
func NewLedger(repo Repository, tx txRunner) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, updates map[string]any) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.TransitionTx(ctx, tx, orderID, target, updates)
	})
}

// TransitionTx applies the status change inside an existing transaction so
// callers can combine it with other writes (line item updates, settlement).
func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus, updates map[string]any) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target status %q", target))
	}

	repo := s.repo.WithTx(tx)

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status == target {
			return nil
		}
		if !order.Status.CanTransition(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order cannot move from %s to %s", order.Status, target)).
				WithDetails(map[string]any{"from": order.Status, "to": target})
		}

		merged := map[string]any{"status": target}
		for k, v := range updates {
			merged[k] = v
		}

		applied, err := repo.UpdateOrderVersioned(ctx, orderID, order.Version, merged)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if applied {
			return nil
		}
		// version moved under us, re-read and re-evaluate
	}

	return pkgerrors.New(pkgerrors.CodeConflict, "order transition contended, retry")
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrderWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	list, err := s.repo.ListCustomerOrders(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}
