package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tx is an opaque transaction handle threaded through repository calls. The
// PostgreSQL implementation passes a pgx.Tx; the in-memory test store passes
// itself. A nil Tx executes the call outside any transaction.
type Tx interface{}

// TxManager scopes a function to a single all-or-nothing transaction. The
// callback's Tx must be handed to every repository call that should join the
// transaction; any error rolls the whole transaction back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// LoanRepository persists loans.
type LoanRepository interface {
	Create(ctx context.Context, tx Tx, loan *Loan) (*Loan, error)
	GetByID(ctx context.Context, tx Tx, id int64) (*Loan, error)
	ListByBorrower(ctx context.Context, borrower string) ([]*Loan, error)
	Update(ctx context.Context, tx Tx, loan *Loan) error
}

// LoanShareRepository persists per-borrower loan shares.
type LoanShareRepository interface {
	Create(ctx context.Context, tx Tx, share *LoanShare) (*LoanShare, error)
	GetByID(ctx context.Context, tx Tx, id int64) (*LoanShare, error)
	ListByLoan(ctx context.Context, tx Tx, loanID int64) ([]*LoanShare, error)
	Update(ctx context.Context, tx Tx, share *LoanShare) error
}

// InstallmentRepository persists installments. GetForUpdate must acquire an
// exclusive row lock scoped to the enclosing transaction; allocation holds it
// across the read of remaining balances and the write of the ledger line.
type InstallmentRepository interface {
	CreateBatch(ctx context.Context, tx Tx, installments []*Installment) error
	GetForUpdate(ctx context.Context, tx Tx, id int64) (*Installment, error)
	ListByShare(ctx context.Context, tx Tx, shareID int64) ([]*Installment, error)
	UpdateStatus(ctx context.Context, tx Tx, id int64, status InstallmentStatus) error
	// ListOpenForAccrual returns installments of APPROVED shares that still
	// owe principal or penalty (status not PAID / PAID_WITHOUT_PENALTY).
	ListOpenForAccrual(ctx context.Context) ([]*Installment, error)
}

// RepaymentRepository persists repayment events and their ledger lines.
// Create must fail with ErrDuplicatePayment when the payment reference is
// already recorded.
type RepaymentRepository interface {
	Create(ctx context.Context, tx Tx, repayment *LoanRepayment) error
	GetOrCreateDetail(ctx context.Context, tx Tx, installmentID int64, repaymentID uuid.UUID) (*InstallmentDetail, error)
	UpdateDetail(ctx context.Context, tx Tx, detail *InstallmentDetail) error
	ListDetailsByInstallment(ctx context.Context, tx Tx, installmentID int64) ([]*InstallmentDetail, error)
}

// PenaltyRepository persists daily penalty accrual rows.
type PenaltyRepository interface {
	Create(ctx context.Context, tx Tx, penalty *Penalty) error
	UpdateAmount(ctx context.Context, tx Tx, id int64, amount decimal.Decimal) error
	// DeleteAfter removes rows dated strictly after the given date and
	// returns how many were removed.
	DeleteAfter(ctx context.Context, tx Tx, installmentID int64, after time.Time) (int64, error)
	// ListByInstallment returns rows in ascending date order.
	ListByInstallment(ctx context.Context, tx Tx, installmentID int64) ([]*Penalty, error)
}
