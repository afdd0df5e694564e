package service

import (
	"time"

	"github.com/campushq/admissions-api/internal/models"
)

// DeriveFeeStatus computes the payment status of a ledger entry from its
// amounts and due date. The priority order is fixed: a fully paid entry is
// Paid regardless of its due date, a partly paid one is Partial, an unpaid
// entry past its due date is Overdue, anything else is Pending.
func DeriveFeeStatus(totalAmount, paidAmount float64, dueDate *time.Time, now time.Time) models.FeeStatus {
	switch {
	case paidAmount >= totalAmount:
		return models.FeeStatusPaid
	case paidAmount > 0:
		return models.FeeStatusPartial
	case dueDate != nil && dueDate.Before(now):
		return models.FeeStatusOverdue
	default:
		return models.FeeStatusPending
	}
}

// DerivePendingAmount computes the outstanding balance of an entry. Overpaid
// entries clamp to zero rather than going negative.
func DerivePendingAmount(totalAmount, paidAmount float64) float64 {
	pending := totalAmount - paidAmount
	if pending < 0 {
		return 0
	}
	return pending
}

// ApplyFeeDerivation rewrites the derived fields of a fee from its source
// amounts. Derived fields are never accepted from callers.
func ApplyFeeDerivation(fee *models.Fee, now time.Time) {
	fee.PendingAmount = DerivePendingAmount(fee.TotalAmount, fee.PaidAmount)
	fee.PaymentStatus = DeriveFeeStatus(fee.TotalAmount, fee.PaidAmount, fee.DueDate, now)
}
