package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidPeriodicity   = errors.New("given periodicity is invalid")
	ErrInvalidLoanApproval  = errors.New("given loan cannot be approved")
	ErrInactiveLoan         = errors.New("cannot perform this operation on inactive loan")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrLoanShareNotFound    = errors.New("loan share not found")
	ErrInstallmentNotFound  = errors.New("installment not found")
	ErrDuplicatePayment     = errors.New("payment reference already used")
	ErrLoanAmountInvalid    = errors.New("loan amount must be positive")
	ErrLoanTenureInvalid    = errors.New("tenure must be between 1 and 60")
	ErrLoanRateInvalid      = errors.New("interest and processing fee must not be negative")
	ErrPaymentAmountInvalid = errors.New("payment amount must be positive")
	ErrPaymentRefRequired   = errors.New("payment reference is required")
)

// LoanDetailsError wraps any constraint violation detected while creating a
// loan, keeping the original cause attached for the caller.
type LoanDetailsError struct {
	Cause error
}

func (e LoanDetailsError) Error() string {
	return fmt.Sprintf("invalid details provided to create loan: %v", e.Cause)
}

func (e LoanDetailsError) Unwrap() error { return e.Cause }

// PaymentError wraps any ledger failure while recording a payment.
type PaymentError struct {
	Cause error
}

func (e PaymentError) Error() string {
	return fmt.Sprintf("invalid payment details provided: %v", e.Cause)
}

func (e PaymentError) Unwrap() error { return e.Cause }

// LoanIDError reports a referenced entity that does not exist, with the
// attempted operation and the offending id for the caller.
type LoanIDError struct {
	Op string
	ID int64
}

func (e LoanIDError) Error() string {
	return fmt.Sprintf("invalid loan id provided: %s: %d", e.Op, e.ID)
}
