package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus is the fulfillment state of a single installment.
type InstallmentStatus string

const (
	InstallmentUnpaid             InstallmentStatus = "UNPAID"
	InstallmentPartiallyPaid      InstallmentStatus = "PARTIALLY_PAID"
	InstallmentPaidWithoutPenalty InstallmentStatus = "PAID_WITHOUT_PENALTY"
	InstallmentPaid               InstallmentStatus = "PAID"
)

// PrincipalSettled reports whether the installment's suggested amount has
// been fully covered (penalty may still be owed).
func (s InstallmentStatus) PrincipalSettled() bool {
	return s == InstallmentPaid || s == InstallmentPaidWithoutPenalty
}

// Installment is one scheduled obligation within a loan share's schedule.
// Order is 1-based and unique per share; it defines processing order.
// SuggestedAmount is fixed at schedule generation time.
type Installment struct {
	ID              int64             `json:"id"`
	LoanShareID     int64             `json:"loanShareId"`
	Order           int32             `json:"order"`
	DueDate         time.Time         `json:"dueDate"`
	SuggestedAmount decimal.Decimal   `json:"suggestedAmount"`
	Status          InstallmentStatus `json:"status"`
}

// AmountRemaining is the unpaid principal: suggested amount minus the sum of
// principal applied across the installment's ledger lines. Negative when
// overpaid.
func (i *Installment) AmountRemaining(details []*InstallmentDetail) decimal.Decimal {
	paid := decimal.Zero
	for _, d := range details {
		if d.InstallmentID == i.ID {
			paid = paid.Add(d.Amount)
		}
	}
	return i.SuggestedAmount.Sub(paid)
}

// PenaltyRemaining is the accrued penalty to date minus the penalty applied
// across the installment's ledger lines. Negative when overpaid.
func (i *Installment) PenaltyRemaining(accrued decimal.Decimal, details []*InstallmentDetail) decimal.Decimal {
	paid := decimal.Zero
	for _, d := range details {
		if d.InstallmentID == i.ID {
			paid = paid.Add(d.PenaltyAmount)
		}
	}
	return accrued.Sub(paid)
}
