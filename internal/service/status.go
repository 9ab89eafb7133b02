package service

import (
	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// InstallmentStatusFor derives an installment's status from its current
// balances. It is a pure function of the accumulated ledger facts:
//
//	remaining >= suggested                -> UNPAID
//	0 < remaining < suggested             -> PARTIALLY_PAID
//	remaining <= 0, penalty owed          -> PAID_WITHOUT_PENALTY
//	remaining <= 0, no penalty owed       -> PAID
func InstallmentStatusFor(suggested, amountRemaining, penaltyRemaining decimal.Decimal) domain.InstallmentStatus {
	switch {
	case amountRemaining.GreaterThanOrEqual(suggested):
		return domain.InstallmentUnpaid
	case amountRemaining.GreaterThan(decimal.Zero):
		return domain.InstallmentPartiallyPaid
	case penaltyRemaining.GreaterThan(decimal.Zero):
		return domain.InstallmentPaidWithoutPenalty
	default:
		return domain.InstallmentPaid
	}
}

// shareCompleted reports whether every installment of a share is PAID.
func shareCompleted(installments []*domain.Installment) bool {
	for _, i := range installments {
		if i.Status != domain.InstallmentPaid {
			return false
		}
	}
	return len(installments) > 0
}

// loanCompleted reports whether every share of a loan is COMPLETED.
func loanCompleted(shares []*domain.LoanShare) bool {
	for _, s := range shares {
		if s.Status != domain.LoanStatusCompleted {
			return false
		}
	}
	return len(shares) > 0
}
