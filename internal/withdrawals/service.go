package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier delivers vendor-facing notifications off the request path.
type Notifier interface {
	Enqueue(ctx context.Context, notification models.Notification)
}

// RequestInput is a vendor's payout request.
type RequestInput struct {
	VendorID     uuid.UUID `validate:"required"`
	BankDetailID uuid.UUID `validate:"required"`
	AmountCents  int64     `validate:"required,gt=0"`
	Note         *string
}

// PayoutInput carries the transfer evidence an admin records when marking a
// request paid.
type PayoutInput struct {
	AdminID        uuid.UUID
	TransactionRef string
	InvoiceURL     *string
}

// Service runs the withdrawal pipeline: vendors request, admins decide,
// the available balance is debited only at the moment a request is paid.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.WithdrawalRequest, error)
	Approve(ctx context.Context, requestID, adminID uuid.UUID) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, requestID, adminID uuid.UUID, note *string) (*models.WithdrawalRequest, error)
	MarkPaid(ctx context.Context, requestID uuid.UUID, input PayoutInput) (*models.WithdrawalRequest, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]models.WithdrawalRequest, error)
	ListPending(ctx context.Context) ([]models.WithdrawalRequest, error)
	Get(ctx context.Context, requestID uuid.UUID) (*models.WithdrawalRequest, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier Notifier
	logger   *logger.Logger
}

// NewService builds the withdrawal service. notifier may be nil.
func NewService(repo Repository, tx txRunner, notifier Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("withdrawals repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, notifier: notifier, logger: logg}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.WithdrawalRequest, error) {
	if input.VendorID == uuid.Nil || input.BankDetailID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id and bank detail id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	vendor, err := s.repo.FindVendor(ctx, input.VendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}

	// Advisory check only. The balance is not held; the debit happens when
	// the request is marked paid, which re-checks atomically.
	if input.AmountCents > vendor.AvailableWithdrawalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds available balance").
			WithDetails(map[string]any{"available_cents": vendor.AvailableWithdrawalCents})
	}

	request := &models.WithdrawalRequest{
		ID:           uuid.New(),
		VendorID:     input.VendorID,
		BankDetailID: input.BankDetailID,
		AmountCents:  input.AmountCents,
		Status:       enums.WithdrawalStatusPending,
		Note:         input.Note,
	}
	if err := s.repo.CreateRequest(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create withdrawal request")
	}

	if s.logger != nil {
		s.logger.Info(ctx, fmt.Sprintf("withdrawal %s requested by vendor %s for %d cents", request.ID, request.VendorID, request.AmountCents))
	}
	return request, nil
}

func (s *service) Approve(ctx context.Context, requestID, adminID uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.decide(ctx, requestID, enums.WithdrawalStatusApproved, map[string]any{
		"decided_by": adminID,
	})
}

func (s *service) Reject(ctx context.Context, requestID, adminID uuid.UUID, note *string) (*models.WithdrawalRequest, error) {
	updates := map[string]any{"decided_by": adminID}
	if note != nil {
		updates["note"] = *note
	}
	return s.decide(ctx, requestID, enums.WithdrawalStatusRejected, updates)
}

func (s *service) decide(ctx context.Context, requestID uuid.UUID, target enums.WithdrawalStatus, updates map[string]any) (*models.WithdrawalRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}

	var decided *models.WithdrawalRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		request, err := repo.FindRequest(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load withdrawal request")
		}
		if !request.Status.CanTransition(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("withdrawal cannot move from %s to %s", request.Status, target))
		}

		applied, err := repo.TransitionRequest(ctx, requestID, request.Status, target, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update withdrawal request")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "withdrawal request decided concurrently")
		}

		request.Status = target
		decided = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, decided)
	return decided, nil
}

func (s *service) MarkPaid(ctx context.Context, requestID uuid.UUID, input PayoutInput) (*models.WithdrawalRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if input.TransactionRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}

	var paid *models.WithdrawalRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		request, err := repo.FindRequest(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load withdrawal request")
		}
		if !request.Status.CanTransition(enums.WithdrawalStatusPaid) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("withdrawal cannot move from %s to paid", request.Status))
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"transaction_ref": input.TransactionRef,
			"decided_by":      input.AdminID,
			"paid_at":         now,
		}
		if input.InvoiceURL != nil {
			updates["invoice_url"] = *input.InvoiceURL
		}
		applied, err := repo.TransitionRequest(ctx, requestID, request.Status, enums.WithdrawalStatusPaid, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update withdrawal request")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "withdrawal request decided concurrently")
		}

		// Debit after the status flip so a lost race cannot debit twice.
		// The transaction rolls the flip back if the balance fell short.
		debited, err := repo.DebitVendor(ctx, request.VendorID, request.AmountCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit vendor balance")
		}
		if !debited {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "available balance no longer covers this withdrawal")
		}

		request.Status = enums.WithdrawalStatusPaid
		request.TransactionRef = &input.TransactionRef
		request.PaidAt = &now
		paid = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info(ctx, fmt.Sprintf("withdrawal %s paid, %d cents debited from vendor %s", paid.ID, paid.AmountCents, paid.VendorID))
	}
	s.notifyDecision(ctx, paid)
	return paid, nil
}

func (s *service) notifyDecision(ctx context.Context, request *models.WithdrawalRequest) {
	if s.notifier == nil || request == nil {
		return
	}
	s.notifier.Enqueue(ctx, models.Notification{
		ID:            uuid.New(),
		RecipientID:   request.VendorID,
		TransactionID: &request.ID,
		Type:          enums.NotificationTypeWithdrawal,
		Title:         "Withdrawal update",
		Description:   fmt.Sprintf("Your withdrawal request is now %s.", request.Status),
	})
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]models.WithdrawalRequest, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	requests, err := s.repo.ListVendorRequests(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list withdrawal requests")
	}
	return requests, nil
}

func (s *service) ListPending(ctx context.Context) ([]models.WithdrawalRequest, error) {
	requests, err := s.repo.ListPendingRequests(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending withdrawals")
	}
	return requests, nil
}

func (s *service) Get(ctx context.Context, requestID uuid.UUID) (*models.WithdrawalRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	request, err := s.repo.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load withdrawal request")
	}
	return request, nil
}
