package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanRepayment records one received payment event. The payment reference is
// supplied by the caller and globally unique; the payment date may be earlier
// than the recording time (backdated). Immutable once created.
type LoanRepayment struct {
	ID          uuid.UUID       `json:"id"`
	LoanShareID int64           `json:"loanShareId"`
	PaymentRef  string          `json:"paymentRef"`
	PaymentDate time.Time       `json:"paymentDate"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// InstallmentDetail is the ledger line between a repayment and an installment
// it funded. Amount is principal applied, PenaltyAmount is penalty applied;
// both are running totals updated in place on repeat touches of the same
// (installment, repayment) pair.
type InstallmentDetail struct {
	ID            int64           `json:"id"`
	InstallmentID int64           `json:"installmentId"`
	RepaymentID   uuid.UUID       `json:"repaymentId"`
	Amount        decimal.Decimal `json:"amount"`
	PenaltyAmount decimal.Decimal `json:"penaltyAmount"`
	CreatedAt     time.Time       `json:"createdAt"`
}
