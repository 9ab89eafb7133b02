package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const loanColumns = `id, amount, tenure, periodicity, status, approval_date, closing_date, interest, processing_fee, date_created`

// LoanRepository implements domain.LoanRepository using PostgreSQL
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

// Create inserts a loan and returns it with its assigned ID
func (r *LoanRepository) Create(ctx context.Context, tx domain.Tx, loan *domain.Loan) (*domain.Loan, error) {
	amount, err := decimalToPgNumeric(loan.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	interest, err := decimalToPgNumeric(loan.Interest)
	if err != nil {
		return nil, fmt.Errorf("invalid interest: %w", err)
	}
	processingFee, err := decimalToPgNumeric(loan.ProcessingFee)
	if err != nil {
		return nil, fmt.Errorf("invalid processing fee: %w", err)
	}

	err = resolve(r.pool, tx).QueryRow(ctx, `
		INSERT INTO loans (amount, tenure, periodicity, status, approval_date, closing_date, interest, processing_fee, date_created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		amount, loan.Tenure, string(loan.Periodicity), string(loan.Status),
		loan.ApprovalDate, loan.ClosingDate, interest, processingFee, loan.DateCreated,
	).Scan(&loan.ID)
	if err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}
	return loan, nil
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(ctx context.Context, tx domain.Tx, id int64) (*domain.Loan, error) {
	row := resolve(r.pool, tx).QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)

	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return loan, nil
}

// ListByBorrower retrieves every loan the borrower holds a share of
func (r *LoanRepository) ListByBorrower(ctx context.Context, borrower string) ([]*domain.Loan, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.amount, l.tenure, l.periodicity, l.status, l.approval_date,
		       l.closing_date, l.interest, l.processing_fee, l.date_created
		FROM loans l
		JOIN loan_shares s ON s.loan_id = l.id
		WHERE s.borrower = $1
		ORDER BY l.id`, borrower)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("list loans: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// Update persists a loan's mutable fields (status and lifecycle dates)
func (r *LoanRepository) Update(ctx context.Context, tx domain.Tx, loan *domain.Loan) error {
	tag, err := resolve(r.pool, tx).Exec(ctx, `
		UPDATE loans
		SET status = $2, approval_date = $3, closing_date = $4
		WHERE id = $1`,
		loan.ID, string(loan.Status), loan.ApprovalDate, loan.ClosingDate)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		loan                  domain.Loan
		amount, interest, fee pgtype.Numeric
		periodicity, status   string
	)
	err := row.Scan(&loan.ID, &amount, &loan.Tenure, &periodicity, &status,
		&loan.ApprovalDate, &loan.ClosingDate, &interest, &fee, &loan.DateCreated)
	if err != nil {
		return nil, err
	}
	loan.Amount = pgNumericToDecimal(amount)
	loan.Interest = pgNumericToDecimal(interest)
	loan.ProcessingFee = pgNumericToDecimal(fee)
	loan.Periodicity = domain.Periodicity(periodicity)
	loan.Status = domain.LoanStatus(status)
	return &loan, nil
}
