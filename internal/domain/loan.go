package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenure bounds for a loan.
const (
	MinTenure = 1
	MaxTenure = 60
)

// Periodicity is the repayment cadence of a loan.
type Periodicity string

const (
	PeriodicityDaily   Periodicity = "daily"
	PeriodicityWeekly  Periodicity = "weekly"
	PeriodicityMonthly Periodicity = "monthly"
)

// Factor returns the number of periods per year for interest proration.
func (p Periodicity) Factor() (int64, error) {
	switch p {
	case PeriodicityDaily:
		return 365, nil
	case PeriodicityWeekly:
		return 52, nil
	case PeriodicityMonthly:
		return 12, nil
	default:
		return 0, ErrInvalidPeriodicity
	}
}

// DueDate returns the due date of the installment at zero-based offset t,
// anchored at start. Monthly schedules clamp the day-of-month to the target
// month's last valid day.
func (p Periodicity) DueDate(start time.Time, t int) (time.Time, error) {
	switch p {
	case PeriodicityDaily:
		return start.AddDate(0, 0, t+1), nil
	case PeriodicityWeekly:
		return start.AddDate(0, 0, 7*(t+1)), nil
	case PeriodicityMonthly:
		return addMonths(start, t+1), nil
	default:
		return time.Time{}, ErrInvalidPeriodicity
	}
}

// addMonths adds calendar months, clamping the day to the last valid day of
// the target month (Jan 31 + 1 month = Feb 28/29).
func addMonths(d time.Time, months int) time.Time {
	year, month, day := d.Date()
	total := int(month) - 1 + months
	year += total / 12
	month = time.Month(total%12 + 1)

	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, d.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, d.Location())
}

// LoanStatus is the lifecycle state of a loan or a loan share.
type LoanStatus string

const (
	LoanStatusPending    LoanStatus = "PENDING"
	LoanStatusApproved   LoanStatus = "APPROVED"
	LoanStatusRejected   LoanStatus = "REJECTED"
	LoanStatusCompleted  LoanStatus = "COMPLETED"
	LoanStatusWrittenOff LoanStatus = "WRITTEN_OFF"
	LoanStatusSettled    LoanStatus = "SETTLED"
	LoanStatusHold       LoanStatus = "HOLD"
)

// IsClosed reports whether the status is terminal.
func (s LoanStatus) IsClosed() bool {
	switch s {
	case LoanStatusCompleted, LoanStatusWrittenOff, LoanStatusSettled:
		return true
	}
	return false
}

// Loan holds the agreed terms of an installment loan. Interest and
// ProcessingFee are fractions (0.01 means 1%).
type Loan struct {
	ID            int64           `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Tenure        int32           `json:"tenure"`
	Periodicity   Periodicity     `json:"periodicity"`
	Status        LoanStatus      `json:"status"`
	ApprovalDate  *time.Time      `json:"approvalDate,omitempty"`
	ClosingDate   *time.Time      `json:"closingDate,omitempty"`
	Interest      decimal.Decimal `json:"interest"`
	ProcessingFee decimal.Decimal `json:"processingFee"`
	DateCreated   time.Time       `json:"dateCreated"`
}

// Validate checks the loan's creation constraints.
func (l *Loan) Validate() error {
	if l.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrLoanAmountInvalid
	}
	if l.Tenure < MinTenure || l.Tenure > MaxTenure {
		return ErrLoanTenureInvalid
	}
	// Negative rates would make the total payable shrink below the share and
	// break the schedule-sum arithmetic.
	if l.Interest.IsNegative() || l.ProcessingFee.IsNegative() {
		return ErrLoanRateInvalid
	}
	if _, err := l.Periodicity.Factor(); err != nil {
		return err
	}
	return nil
}

// IsActive reports whether the loan still accepts payments. A loan is
// inactive only when its closing date is set and its status is terminal.
func (l *Loan) IsActive() bool {
	if l.ClosingDate != nil && l.Status.IsClosed() {
		return false
	}
	return true
}

// LoanShare is one liable borrower's portion of a loan. Group loans hold one
// share per borrower; payments and installments are scoped to a share.
type LoanShare struct {
	ID       int64           `json:"id"`
	LoanID   int64           `json:"loanId"`
	Borrower string          `json:"borrower"`
	Share    decimal.Decimal `json:"share"`
	Status   LoanStatus      `json:"status"`
}
