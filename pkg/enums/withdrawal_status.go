package enums

import "fmt"

// WithdrawalStatus tracks the lifecycle of a vendor payout request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
	WithdrawalStatusPaid     WithdrawalStatus = "paid"
)

var validWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusPending,
	WithdrawalStatusApproved,
	WithdrawalStatusRejected,
	WithdrawalStatusPaid,
}

// String implements fmt.Stringer.
func (s WithdrawalStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known WithdrawalStatus.
func (s WithdrawalStatus) IsValid() bool {
	for _, candidate := range validWithdrawalStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether the admin decision from s to target is
// permitted. Paid requests are immutable; rejected requests may be
// re-approved.
func (s WithdrawalStatus) CanTransition(target WithdrawalStatus) bool {
	if s == WithdrawalStatusPaid {
		return false
	}
	switch target {
	case WithdrawalStatusApproved:
		return s == WithdrawalStatusPending || s == WithdrawalStatusRejected
	case WithdrawalStatusRejected:
		return s == WithdrawalStatusPending || s == WithdrawalStatusApproved
	case WithdrawalStatusPaid:
		return s == WithdrawalStatusApproved
	default:
		return false
	}
}

// ParseWithdrawalStatus converts raw input into a WithdrawalStatus.
func ParseWithdrawalStatus(value string) (WithdrawalStatus, error) {
	for _, candidate := range validWithdrawalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid withdrawal status %q", value)
}
